package fetch

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_HeaderChannel(t *testing.T) {
	input := "point_id,depth_ft\nB-101,5\nB-101,10\n"
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"point_id", "depth_ft"}, <-headerCh)
	assert.Equal(t, []string{"B-101", "5"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " B-101 , 5 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"B-101", "5"}, rows[0])
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Len(t, rows[1], 2)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	for range rowCh {
	}
	require.Error(t, <-errCh)
}

func TestStreamCSV_Semicolon(t *testing.T) {
	input := "a;b\n1;2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: ';'})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestDecodeReader_Latin1(t *testing.T) {
	// 0xE9 is e-acute in latin1; the decoder must yield its UTF-8 form.
	raw := []byte{'c', 'a', 'f', 0xE9}
	r, err := DecodeReader(strings.NewReader(string(raw)), "latin1")
	require.NoError(t, err)

	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "café", string(decoded))
}

func TestDecodeReader_EmptyNameIsPassthrough(t *testing.T) {
	src := strings.NewReader("plain")
	r, err := DecodeReader(src, "")
	require.NoError(t, err)
	assert.Equal(t, io.Reader(src), r)
}

func TestDecodeReader_UnsupportedEncoding(t *testing.T) {
	_, err := DecodeReader(strings.NewReader("x"), "no-such-charset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestStripBOM_RemovesMark(t *testing.T) {
	r := StripBOM(strings.NewReader("\xEF\xBB\xBFboring_id,latitude"))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "boring_id,latitude", string(data))
}

func TestStripBOM_PassthroughWithoutMark(t *testing.T) {
	r := StripBOM(strings.NewReader("boring_id,latitude"))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "boring_id,latitude", string(data))
}

func TestStripBOM_ShortInput(t *testing.T) {
	r := StripBOM(strings.NewReader("ab"))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}
