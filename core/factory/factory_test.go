package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{ A int }

type sampleConf struct {
	A int `json:"a"`
}

func sampleFactory(conf map[string]any) (*sample, error) {
	var c sampleConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &sample{A: c.A}, nil
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]("sample")
	require.NoError(t, reg.Register("s", sampleFactory))
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"a": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, inst.A)
}

func TestRegistry_WeakDecode(t *testing.T) {
	reg := NewRegistry[*sample]("sample")
	reg.MustRegister("s", sampleFactory)
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"a": "7"}})
	require.NoError(t, err)
	assert.Equal(t, 7, inst.A)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]("number")
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("z", nil))
	_, err := reg.Create(ModuleConfig{Type: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown number type "y"`)
	assert.Equal(t, []string{"x"}, reg.Names())
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry[int]("number")
	reg.MustRegister("x", func(map[string]any) (int, error) { return 1, nil })
	assert.Panics(t, func() {
		reg.MustRegister("x", func(map[string]any) (int, error) { return 1, nil })
	})
}

func TestRegistry_WrapsFactoryError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry[int]("number")
	reg.MustRegister("x", func(map[string]any) (int, error) { return 0, boom })
	_, err := reg.Create(ModuleConfig{Type: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `number "x"`)
}
