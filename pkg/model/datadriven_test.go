package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"

	"github.com/rauzy/rauzy/pkg/document"
)

func TestTransforms(t *testing.T) {
	var obj *Object
	datadriven.RunTest(t, "testdata/transforms", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			obj = parseDefinition(t, td.Input)
			return "ok\n"

		case "show":
			return renderObject(t, obj)

		case "abstract":
			var level int
			td.ScanArgs(t, "level", &level)
			return renderObject(t, obj.AbstractToDepth(level))

		case "flatten":
			level := 0
			td.MaybeScanArgs(t, "level", &level)
			return renderObject(t, obj.FlattenToDepth(level))

		case "keyword":
			var key, value string
			td.ScanArgs(t, "key", &key)
			td.ScanArgs(t, "value", &value)
			return renderObject(t, obj.KeywordAbstraction(key, value))

		case "remove-object":
			var name string
			td.ScanArgs(t, "name", &name)
			parent := obj
			if td.HasArg("parent") {
				var parentName string
				td.ScanArgs(t, "parent", &parentName)
				parent = obj.LookupObject(parentName)
				require.NotNil(t, parent)
			}
			if err := parent.RemoveObject(name); err != nil {
				return err.Error() + "\n"
			}
			removed := obj.RemoveInvalidRelations()
			if len(removed) == 0 {
				return "removed relations: none\n"
			}
			return fmt.Sprintf("removed relations: %s\n", strings.Join(removed, ", "))

		case "compare":
			other := parseDefinition(t, td.Input)
			return obj.Compare(other).String()

		default:
			return fmt.Sprintf("unknown command %q", td.Cmd)
		}
	})
}

func parseDefinition(t *testing.T, input string) *Object {
	t.Helper()
	doc, err := document.DecodeObject(strings.NewReader(input), document.FormatJSON)
	require.NoError(t, err)
	obj, err := FromDocument(doc, nil)
	require.NoError(t, err)
	return obj
}

func renderObject(t *testing.T, obj *Object) string {
	t.Helper()
	data, err := json.Marshal(obj.Document())
	require.NoError(t, err)
	return string(data) + "\n"
}
