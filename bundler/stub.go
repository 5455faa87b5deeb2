package bundler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// stubPath names the generated overlay file for one activity module
// specifier, the file a workflow's import of that specifier resolves to
// once the overlay shadows it (spec.md §4.4 step 1).
func stubPath(module string) string {
	return module + ".js"
}

// stubSource renders the generated forwarding stub for one activity module:
// one exported function per name in functions, each forwarding its call to
// scheduleActivity with the [module, function] pair JSON.stringify'd and
// attached as the returned call's .type property (spec.md §4.4 step 2).
// functions must already be sorted for deterministic output.
func stubSource(module string, functions []string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by the sandbox bundler for %q. DO NOT EDIT.\n\n", module)
	for _, fn := range functions {
		typeJSON, _ := json.Marshal([2]string{module, fn})
		fmt.Fprintf(&buf, "export function %s(...args) {\n", fn)
		fmt.Fprintf(&buf, "  const call = scheduleActivity(JSON.stringify(%s), args);\n", typeJSON)
		fmt.Fprintf(&buf, "  call.type = %s;\n", typeJSON)
		buf.WriteString("  return call;\n}\n\n")
	}
	return buf.Bytes()
}
