package directive

// globals is the fixed set of host/language identifiers that never count
// as closure captures, even when they resolve to nothing in the scope
// chain. It mirrors the minimal runtime globals a sandboxed module body
// can expect to exist without an explicit import.
var globals = map[string]bool{
	"console": true, "Math": true, "JSON": true, "Object": true, "Array": true,
	"String": true, "Number": true, "Boolean": true, "Symbol": true, "BigInt": true,
	"Promise": true, "Error": true, "TypeError": true, "RangeError": true,
	"SyntaxError": true, "Map": true, "Set": true, "WeakMap": true, "WeakSet": true,
	"Date": true, "RegExp": true, "Proxy": true, "Reflect": true,
	"undefined": true, "NaN": true, "Infinity": true, "globalThis": true,
	"setTimeout": true, "setInterval": true, "clearTimeout": true, "clearInterval": true,
	"process": true, "Buffer": true, "structuredClone": true,
	"parseInt": true, "parseFloat": true, "isNaN": true, "isFinite": true,
	"encodeURIComponent": true, "decodeURIComponent": true,
}

func isGlobal(name string) bool { return globals[name] }
