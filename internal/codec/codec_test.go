package codec

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/rules"
)

func TestDisplay_AllBytes(t *testing.T) {
	for v := 0; v < 256; v++ {
		got := Display([]byte{byte(v)})
		if v >= 32 && v <= 126 {
			assert.Equal(t, string(rune(v)), got, "byte %d", v)
		} else {
			assert.Equal(t, fmt.Sprintf(`\x%02x`, v), got, "byte %d", v)
		}
	}
}

func TestDisplay_Examples(t *testing.T) {
	assert.Equal(t, "A", Display([]byte{0x41}))
	assert.Equal(t, `\x00`, Display([]byte{0x00}))
	assert.Equal(t, `\xff`, Display([]byte{0xff}))
	assert.Equal(t, `\x7f\x1f ~`, Display([]byte{0x7f, 0x1f, ' ', '~'}))
	assert.Equal(t, "", Display(nil))
}

func TestDecodeForDisplay(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x68, 0x69, 0x00})

	got, err := DecodeForDisplay(payload)
	require.NoError(t, err)
	assert.Equal(t, `hi\x00`, got)
}

func TestDecodeForDisplay_Unpadded(t *testing.T) {
	for _, payload := range []string{"aGk", "aGk=", "aG k=\n", "aGkA"} {
		got, err := DecodeForDisplay(payload)
		require.NoError(t, err, payload)
		assert.Contains(t, got, "hi", payload)
	}

	for _, payload := range []string{"aGk==", "a", "aG="} {
		_, err := DecodeForDisplay(payload)
		assert.Error(t, err, payload)
	}
}

func TestDecodeForDisplay_DoesNotEscapeHTML(t *testing.T) {
	got, err := DecodeForDisplay(EncodePayload([]byte("<script>")))
	require.NoError(t, err)
	assert.Equal(t, "<script>", got)
}

func TestDecodeForDisplay_InvalidBase64(t *testing.T) {
	_, err := DecodeForDisplay("not base64!")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	d, err := Decode(rules.Rule{ID: 4, ServiceName: "ssh", Payload: EncodePayload([]byte("GET\r\n"))})
	require.NoError(t, err)
	assert.Equal(t, rules.Decoded{ID: 4, ServiceName: "ssh", Text: `GET\x0d\x0a`}, d)

	_, err = Decode(rules.Rule{ID: 5, Payload: "%%%"})
	assert.ErrorContains(t, err, "rule 5")
}

func TestEncodeText(t *testing.T) {
	tests := []struct {
		name    string
		typ     rules.Type
		text    string
		want    []byte
		wantErr error
	}{
		{"ascii", rules.TypeASCII, "abc", []byte("abc"), nil},
		{"hex", rules.TypeHex, "00ff41", []byte{0x00, 0xff, 0x41}, nil},
		{"bad hex", rules.TypeHex, "zz", nil, ErrInvalidHex},
		{"base64", rules.TypeBase64, "aGk=", []byte("hi"), nil},
		{"bad base64", rules.TypeBase64, "a", nil, ErrInvalidBase64},
		{"unknown", rules.Type("regex"), "x", nil, ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeText(tt.typ, tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" HEX ")
	require.NoError(t, err)
	assert.Equal(t, rules.TypeHex, typ)

	_, err = ParseType("glob")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestPreview(t *testing.T) {
	got, err := Preview(rules.TypeHex, "de00ad")
	require.NoError(t, err)
	assert.Equal(t, `\xde\x00\xad`, got)
}
