// internal/browser/scripts.go
package browser

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail.
		panic(err)
	}
	return string(b)
}

// probeScript reports presence, visibility, enabled state and rendered text
// of the first element matching sel. Visibility follows what a user could
// click: displayed, not hidden and with a non-empty box.
func probeScript(sel string) string {
	return fmt.Sprintf(`(function(sel) {
	const el = document.querySelector(sel);
	if (!el) { return {present: false, visible: false, enabled: false, text: ""}; }
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	const visible = style.display !== "none" && style.visibility !== "hidden" && rect.width > 0 && rect.height > 0;
	const text = (el.innerText !== undefined ? el.innerText : el.textContent) || "";
	return {present: true, visible: visible, enabled: !el.disabled, text: text.trim()};
})(%s)`, jsString(sel))
}

// clearFieldScript empties an input and fires the events frameworks listen for.
func clearFieldScript(sel string) string {
	return fmt.Sprintf(`(function(sel) {
	const el = document.querySelector(sel);
	if (!el) { return false; }
	el.focus();
	el.value = "";
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
})(%s)`, jsString(sel))
}

func hasOptionScript(sel, value string) string {
	return fmt.Sprintf(`(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el || !el.options) { return false; }
	return Array.from(el.options).some(o => o.value === value && !o.disabled);
})(%s, %s)`, jsString(sel), jsString(value))
}

func selectOptionScript(sel, value string) string {
	return fmt.Sprintf(`(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el || !el.options) { return false; }
	el.focus();
	el.value = value;
	if (el.value !== value) { return false; }
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
})(%s, %s)`, jsString(sel), jsString(value))
}
