package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"bare", `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", false},
		{"prose", "Sure! {\"a\": 1} hope that helps", false},
		{"unterminated fence", "```\n{\"a\": 1}", false},
		{"nothing", "no json", true},
		{"array", "[1, 2]", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parseRecord(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1.0, rec.Float("a"))
		})
	}
}

func TestRecordGetters(t *testing.T) {
	rec := Record{
		"s":      " buy ",
		"n":      "12.5%",
		"b":      "true",
		"list":   []any{"x", 2.0, nil},
		"single": "only",
		"nested": map[string]any{"level": "HIGH", "score": "0.7", "note": "n/a"},
		"null":   nil,
	}
	assert.Equal(t, "buy", rec.String("s"))
	assert.Equal(t, "BUY", rec.Upper("s"))
	assert.Equal(t, 12.5, rec.Float("n"))
	assert.Equal(t, 3.0, rec.FloatOr("missing", 3))
	assert.Nil(t, rec.FloatPtr("null"))
	assert.True(t, rec.Bool("b"))
	assert.Equal(t, []string{"x", "2"}, rec.Strings("list"))
	assert.Equal(t, []string{"only"}, rec.Strings("single"))
	assert.Equal(t, "HIGH", rec.Record("nested").String("level"))
	assert.Equal(t, map[string]float64{"score": 0.7}, rec.FloatMap("nested"))
	assert.False(t, rec.Has("null"))
}

func TestApplyDefaultsKeepsPresentValues(t *testing.T) {
	rec := applyDefaults("trader/decision", Record{"quantity_fraction": 0.25})
	assert.Equal(t, 0.25, rec.Float("quantity_fraction"))
	assert.Equal(t, 5.0, rec.Float("stop_loss_pct"))
	assert.Equal(t, "HOLD", rec.String("action"))
}

func TestRecordRejectsNonFiniteNumbers(t *testing.T) {
	rec := Record{"nan": "NaN", "inf": "Infinity", "neg": "-Inf", "pct": "12.5%", "word": "high"}

	for _, key := range []string{"nan", "inf", "neg", "word", "missing"} {
		assert.Equal(t, 0.0, rec.Float(key), key)
		assert.Equal(t, 7.0, rec.FloatOr(key, 7), key)
		assert.Nil(t, rec.FloatPtr(key), key)
	}
	assert.Equal(t, 12.5, rec.Float("pct"))
}
