package campaign

import "strings"

const namePlaceholder = "{name}"

// RenderMessage substitutes the {name} placeholder with the contact's
// display name. Contacts without a name get the template verbatim with the
// placeholder removed rather than a dangling token.
func RenderMessage(template, contactName string) string {
	if !strings.Contains(template, namePlaceholder) {
		return template
	}
	out := strings.ReplaceAll(template, namePlaceholder, contactName)
	if contactName == "" {
		// collapse doubled spaces left by an empty substitution
		out = strings.Join(strings.Fields(out), " ")
	}
	return out
}
