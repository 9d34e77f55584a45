package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierSafe(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CalcTest", "CalcTest"},
		{"string-utilsTest", "string_utilsTest"},
		{"data.loader", "data_loader"},
		{"2fa_test", "_2fa_test"},
		{"", "Generated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, identifierSafe(tt.in), tt.in)
	}
}

func TestSkeletonFunctions(t *testing.T) {
	got := skeletonFunctions([]string{"add", "Add", "do_thing", "doThing"})

	assert.Equal(t, []skeletonFunction{
		{Name: "add", Upper: "Add", Lower: "add", Snake: "add"},
		{Name: "Add", Upper: "Add2", Lower: "add2", Snake: "add_2"},
		{Name: "do_thing", Upper: "DoThing", Lower: "doThing", Snake: "do_thing"},
		{Name: "doThing", Upper: "DoThing2", Lower: "doThing2", Snake: "do_thing_2"},
	}, got)
}
