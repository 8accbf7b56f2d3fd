package nodepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ExposesTemplateContext(t *testing.T) {
	ctx := TemplateContext{
		NodeClass:    "compute",
		Instance:     3,
		NodeHostname: "compute-004",
		RemotePort:   22,
		LocalIP:      "127.0.0.1",
		LocalPort:    54321,
	}

	out, err := render("/tmp/{{.NodeHostname}}-{{.Instance}}.img", ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/compute-004-3.img", out)
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := render("{{.Nope", TemplateContext{})
	assert.Error(t, err)
}
