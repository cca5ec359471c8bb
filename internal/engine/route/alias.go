package route

// sceneAliases resolves legacy symbolic scene codes to their canonical
// numeric form. The table is closed: unknown codes pass through unchanged.
var sceneAliases = map[string]string{
	"2A":       "2.1",
	"2B":       "2.2",
	"3A":       "3.1",
	"3B":       "3.2",
	"4.GOLDEN": "4.golden",
}

// NormalizeSceneCode maps a legacy symbolic scene code to its canonical
// form. Canonical and unknown codes are returned unchanged.
func NormalizeSceneCode(code string) string {
	if canonical, ok := sceneAliases[code]; ok {
		return canonical
	}
	return code
}
