package diffengine

// diffIgnore is the smaller exclusion set applied when comparing a
// restored snapshot against the working tree. Unlike snapshot.AlwaysIgnore
// it only hides paths that are pure build noise, not housekeeping
// directories the project may legitimately want to see modified.
var diffIgnore = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"__pycache__":   true,
	".ftl_meta":     true,
	".DS_Store":     true,
}

func isDiffIgnored(name string) bool {
	return diffIgnore[name]
}
