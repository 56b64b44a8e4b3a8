package collection

import "strings"

// roleKeywords lists the words that suggest a role, in role declaration
// order. An entry ending in '*' matches any word with that prefix.
var roleKeywords = []struct {
	role     Role
	keywords []string
}{
	{RoleBackend, []string{"api", "rest", "endpoint*", "server*", "database*"}},
	{RoleFrontend, []string{"react", "vue", "component*", "ui", "frontend"}},
	{RoleQuant, []string{"trading", "backtest*", "portfolio*", "quant*", "risk*"}},
	{RoleDevOps, []string{"docker", "kubernetes", "deploy*", "ci", "cd"}},
	{RoleML, []string{"neural", "training", "model*", "ml", "ai"}},
	{RoleSecurity, []string{"jwt", "vulnerabilit*", "security", "auth*"}},
	{RoleMobile, []string{"flutter", "swift", "kotlin", "ios", "android", "mobile"}},
}

// DetectRoles suggests roles for a piece of text from keyword matches.
// Universal is included when nothing else matches or the text talks about
// general or debugging topics. The result is in role declaration order.
func DetectRoles(text string) []Role {
	words := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9')
	})

	var detected []Role
	for _, entry := range roleKeywords {
		if anyKeyword(words, entry.keywords) {
			detected = append(detected, entry.role)
		}
	}

	if len(detected) == 0 || anyKeyword(words, []string{"general*", "debug*"}) {
		detected = append([]Role{RoleUniversal}, detected...)
	}
	return detected
}

func anyKeyword(words, keywords []string) bool {
	for _, w := range words {
		for _, kw := range keywords {
			if prefix, ok := strings.CutSuffix(kw, "*"); ok {
				if strings.HasPrefix(w, prefix) {
					return true
				}
			} else if w == kw {
				return true
			}
		}
	}
	return false
}
