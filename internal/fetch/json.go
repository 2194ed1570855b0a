package fetch

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// StreamJSONArray decodes a JSON array streaming, sending each element to a
// channel. With an empty field the input must be the array itself. With a
// field name the input must be an object and the array is read from that
// top-level field; other fields are skipped without buffering.
// Both channels are closed when processing completes.
func StreamJSONArray[T any](ctx context.Context, r io.Reader, field string) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		if field != "" {
			if err := seekField(decoder, field); err != nil {
				if err == io.EOF {
					return
				}
				errCh <- err
				return
			}
		}

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		// Consume closing bracket
		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// seekField positions the decoder just before the value of the named
// top-level object field.
func seekField(decoder *json.Decoder, field string) error {
	tok, err := decoder.Token()
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return eris.Errorf("json: expected '{', got %v", tok)
	}

	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return eris.Wrap(err, "json: read object key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return eris.Errorf("json: expected object key, got %v", keyTok)
		}

		if key == field {
			return nil
		}
		if err := skipValue(decoder); err != nil {
			return eris.Wrapf(err, "json: skip field %q", key)
		}
	}

	return eris.Errorf("json: field %q not found", field)
}

// skipValue consumes the next value, descending into nested objects and
// arrays, without decoding it.
func skipValue(decoder *json.Decoder) error {
	tok, err := decoder.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}

	depth := 1
	for depth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
