package analysis

import "github.com/dlclark/regexp2"

var envAccessors = []string{"process.env", "import.meta.env"}

func securityRules() []Rule {
	return []Rule{
		PatternRule{
			ID: HardcodedSecrets,
			Patterns: []Pattern{
				la(`password\s*[:=]\s*["'](?!.*\$\{|process\.env)`, regexp2.IgnoreCase),
				la(`secret\s*[:=]\s*["'](?!.*\$\{|process\.env)`, regexp2.IgnoreCase),
				la(`api[_-]?key\s*[:=]\s*["'](?!.*\$\{|process\.env)`, regexp2.IgnoreCase),
				re(`(?i)token\s*[:=]\s*["'][A-Za-z0-9+/=]{20,}["']`),
			},
			Exempt:       envAccessors,
			SkipComments: true,
		},
		PatternRule{
			ID: SQLInjection,
			Patterns: []Pattern{
				re(`query\s*\(\s*['"\x60].*\$\{.*\}.*['"\x60]`),
				re(`query\s*\(\s*['"\x60].*\+.*['"\x60]`),
				re(`\.raw\s*\(\s*['"\x60].*\$\{.*\}`),
			},
		},
		PatternRule{
			ID: XSSVulnerabilities,
			Patterns: []Pattern{
				re(`dangerouslySetInnerHTML`),
				re(`innerHTML\s*=`),
				re(`document\.write\s*\(`),
				re(`\.html\s*\(\s*[^)]*\$\{`),
				re(`v-html\s*=`),
			},
		},
		PatternRule{
			ID: UnsafeRegex,
			Patterns: []Pattern{
				re(`RegExp\s*\([^)]*\(\.\*\)\+`),
				re(`RegExp\s*\([^)]*\(\.\+\)\+`),
				re(`/.*\(\.\*\)\+.*/`),
				re(`/.*\(\.\+\)\+.*/`),
			},
		},
		PatternRule{
			ID: ExposedAPIKeys,
			Patterns: []Pattern{
				re(`AIza[0-9A-Za-z_-]{35}`),
				re(`[0-9a-f]{32}-us[0-9]{1,2}`),
				re(`sk_live_[0-9a-zA-Z]{24}`),
				re(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`),
			},
			Exempt: envAccessors,
		},
		PatternRule{
			ID: InsecureRandom,
			Patterns: []Pattern{
				re(`(?i)Math\.random\s*\(\s*\).*(?:password|token|secret|key)`),
				re(`(?i)Date\.now\s*\(\s*\).*(?:password|token|secret|key)`),
			},
		},
		PatternRule{
			ID: EvalUsage,
			Patterns: []Pattern{
				re(`\beval\s*\(`),
				re(`new\s+Function\s*\(`),
				re(`setTimeout\s*\(\s*['"\x60]`),
				re(`setInterval\s*\(\s*['"\x60]`),
			},
		},
		PatternRule{
			ID: CORSIssues,
			Patterns: []Pattern{
				re(`Access-Control-Allow-Origin.*\*`),
				re(`credentials:\s*['"]include['"].*origin:\s*['"]?\*`),
				re(`cors\s*\(\s*\{\s*origin:\s*true`),
			},
		},
	}
}
