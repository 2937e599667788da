package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator(t *testing.T) {
	tr, err := NewTranslator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		accept string
		msg    string
		want   string
	}{
		{name: "no header falls back to english", accept: "", msg: MsgNoFile, want: "No file provided"},
		{name: "english", accept: "en-US,en;q=0.9", msg: MsgNotSquare, want: "Crop is not square"},
		{name: "german", accept: "de-DE,de;q=0.9,en;q=0.5", msg: MsgFileTooBig, want: "Die Datei ist zu groß"},
		{name: "french", accept: "fr", msg: MsgInvalidFile, want: "Fichier non valide"},
		{name: "unsupported language", accept: "ja", msg: MsgContactAdm, want: "An error occurred. Please contact your admin."},
		{name: "garbage header", accept: ";;;", msg: MsgNoFile, want: "No file provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.T(tt.accept, tt.msg))
		})
	}
}
