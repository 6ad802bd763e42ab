package scripting

// prelude defines the subset of the Acrobat form helpers that calculation
// scripts written by form designers commonly call.
const prelude = `
function AFMakeNumber(v) {
	if (typeof v === "number") return v;
	if (v === null || v === undefined) return null;
	var s = String(v).replace(/[,\s]/g, "");
	if (s === "") return null;
	var n = Number(s);
	return isNaN(n) ? null : n;
}
function AFSimple(op, a, b) {
	switch (op) {
	case "PRD": return a * b;
	case "MIN": return Math.min(a, b);
	case "MAX": return Math.max(a, b);
	default: return a + b;
	}
}
function AFSimple_Calculate(op, names) {
	if (typeof names === "string") names = names.split(/\s*,\s*/);
	var acc = null, n = 0;
	for (var i = 0; i < names.length; i++) {
		var f = getField(names[i]);
		if (!f) continue;
		var v = AFMakeNumber(f.value);
		if (v === null) v = 0;
		acc = acc === null ? v : AFSimple(op === "AVG" ? "SUM" : op, acc, v);
		n++;
	}
	if (acc === null) acc = 0;
	if (op === "AVG" && n > 0) acc = acc / n;
	event.value = acc;
}
function AFNumber_Format() {}
function AFNumber_Keystroke() {}
function AFPercent_Format() {}
`
