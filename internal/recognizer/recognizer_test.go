package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostProcessText_Defaults(t *testing.T) {
	in := "  Caf\u00e9 \u201cGold\u201d  card\x07\n\n No.\u200b 42 "
	assert.Equal(t, "Caf\u00e9 \"Gold\" card No. 42", PostProcessText(in, DefaultCleanOptions()))
}

func TestPostProcessText_Options(t *testing.T) {
	opts := CleanOptions{NormalizeForm: "none"}
	assert.Equal(t, "á  b", PostProcessText(" á  b ", opts))

	opts.NormalizeForm = "NFKC"
	assert.Equal(t, "fi", PostProcessText("\ufb01", opts))

	assert.Empty(t, PostProcessText("", DefaultCleanOptions()))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Languages = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Languages = []string{"eng", " "}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PageSegMode = 14
	assert.Error(t, cfg.Validate())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
