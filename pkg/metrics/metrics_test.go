package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodLabel(t *testing.T) {
	assert.Equal(t, "printer.objects.subscribe", MethodLabel("printer.objects.subscribe"))
	assert.Equal(t, "server.gcode_store", MethodLabel("server.gcode_store"))
	assert.Equal(t, OtherMethod, MethodLabel("my_plugin.calibrate"))
	assert.Equal(t, OtherMethod, MethodLabel(""))
	assert.Equal(t, OtherMethod, MethodLabel("PRINTER.INFO"))
}
