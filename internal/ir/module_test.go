package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		module    string
		function  string
		wantErr   bool
	}{
		{"operator", "SystemInt32.__op_Addition__SystemInt32_SystemInt32__SystemInt32", "SystemInt32", "__op_Addition__SystemInt32_SystemInt32__SystemInt32", false},
		{"dotted function part", "A.b.c", "A", "b.c", false},
		{"no dot", "SystemInt32", "", "", true},
		{"empty module", ".Foo", "", "", true},
		{"empty function", "Foo.", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module, function, err := ParseSignature(tt.signature)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.module, module)
			assert.Equal(t, tt.function, function)
		})
	}
}

func TestModuleIndexLookup(t *testing.T) {
	idx := ModuleIndex{
		"UnityEngineDebug": {
			Type: "UnityEngine.Debug",
			Functions: []FunctionDefinition{
				{
					Name:           "__Log__SystemObject__SystemVoid",
					ParameterCount: 1,
					OriginalName:   StringPtr("Log"),
					DefType:        DefMethod,
					IsStatic:       BoolPtr(true),
					ReturnsVoid:    BoolPtr(true),
				},
			},
		},
	}

	info, ok := idx.Lookup("UnityEngineDebug.__Log__SystemObject__SystemVoid")
	require.True(t, ok)
	assert.Equal(t, "UnityEngineDebug", info.ModuleName)
	assert.Equal(t, "UnityEngine.Debug", info.TypeName)
	assert.Equal(t, DefMethod, info.DefType)
	assert.Equal(t, "Log", *info.OriginalName)

	_, ok = idx.Lookup("UnityEngineDebug.__LogError__SystemObject__SystemVoid")
	assert.False(t, ok)

	_, ok = idx.Lookup("Missing.__Log__SystemObject__SystemVoid")
	assert.False(t, ok)

	_, ok = idx.Lookup("malformed")
	assert.False(t, ok)

	assert.Equal(t, 1, idx.FunctionCount())
}

func TestUnmarshalModuleIndex(t *testing.T) {
	data := []byte(`{
  "SystemInt32": {
    "type": null,
    "functions": [
      {"name": "__op_Addition", "parameterCount": 3, "originalName": null, "defType": "OPERATOR", "isStatic": null, "returnsVoid": null}
    ]
  }
}`)

	idx, err := UnmarshalModuleIndex(data)
	require.NoError(t, err)

	mod := idx["SystemInt32"]
	assert.Equal(t, TypeName(""), mod.Type)
	fn, ok := mod.Function("__op_Addition")
	require.True(t, ok)
	assert.Equal(t, DefOperator, fn.DefType)
	assert.Nil(t, fn.OriginalName)
	assert.Nil(t, fn.IsStatic)

	empty, err := UnmarshalModuleIndex([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = UnmarshalModuleIndex([]byte(`[1]`))
	require.Error(t, err)
}

func TestFunctionDefinitionNullsMarshal(t *testing.T) {
	data, err := MarshalDocument(FunctionDefinition{Name: "__ctor__", ParameterCount: 1, DefType: DefCtor})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"name":"__ctor__","parameterCount":1,"originalName":null,"defType":"CTOR_INFO","isStatic":null,"returnsVoid":null}`,
		string(data))
}

func TestDefTypeCarriesFlags(t *testing.T) {
	assert.True(t, DefMethod.CarriesFlags())
	assert.True(t, DefField.CarriesFlags())
	assert.False(t, DefCtor.CarriesFlags())
	assert.False(t, DefOperator.CarriesFlags())
	assert.False(t, DefUnknown.CarriesFlags())
}
