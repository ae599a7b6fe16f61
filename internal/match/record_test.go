package match

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	assert.Equal(t, "", Blank().String())
	assert.Equal(t, "", Str("").String())
	assert.True(t, Str("").IsBlank())
	assert.Equal(t, "abc", Str("abc").String())
	assert.Equal(t, "42", Number(42).String())
	assert.Equal(t, "1.5", Number(1.5).String())
	assert.Equal(t, "-0.001", Number(-0.001).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "false", Bool(false).String())
}

func TestRecord_GetMissingColumnIsBlank(t *testing.T) {
	h := NewHeader([]string{"A", "B", "C"})
	r := NewRecord(h, []Value{Str("x")})

	assert.Equal(t, "x", r.Get("A").String())
	assert.True(t, r.Get("B").IsBlank(), "short row pads with blanks")
	assert.True(t, r.Get("Nope").IsBlank(), "unknown column reads blank")
	assert.Equal(t, []string{"x", "", ""}, r.Strings())
}

func TestRecord_MarshalJSONKeepsHeaderOrder(t *testing.T) {
	h := NewHeader([]string{"Zeta", "Alpha", "Count", "Flag"})
	r := NewRecord(h, []Value{Str("z"), Blank(), Number(3), Bool(true)})

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Zeta":"z","Alpha":"","Count":3,"Flag":true}`, string(b))
}

func TestRecordSet_Empty(t *testing.T) {
	var rs *RecordSet
	assert.Equal(t, 0, rs.Len())
	assert.Nil(t, rs.Columns())

	rs = NewRecordSet([]string{"A"}, nil)
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, []string{"A"}, rs.Columns())
}
