package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"3s"`), &d))
	assert.Equal(t, 3*time.Second, d.Duration)
}

func TestUnmarshalNanoseconds(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`200000000`), &d))
	assert.Equal(t, 200*time.Millisecond, d.Duration)
}

func TestUnmarshalInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"not a duration"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestMarshalRoundTrip(t *testing.T) {
	d := Duration{Duration: 1500 * time.Millisecond}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))

	var back Duration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d.Duration, back.Duration)
}
