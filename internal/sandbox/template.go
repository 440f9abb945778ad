package sandbox

import "encoding/json"

// entrypointPath is the fixed in-container path the user's code is written
// to. Fixed by the external contract: the spec's sandbox surface requires
// a stable mount path regardless of project layout.
const entrypointPath = "/app/entrypoint.ts"

// defaultPackageJSON and defaultTSConfig mirror the original reference
// implementation's defaults exactly (module/moduleResolution NodeNext,
// ES2022 target/lib, tsx-friendly interop flags), since the spec leaves
// project scaffolding unspecified beyond "the agent's code runs under
// tsx/node with source maps enabled."
func defaultPackageJSON() map[string]any {
	return map[string]any{
		"name":    "jstsdebug-session",
		"version": "0.0.0",
		"private": true,
		"type":    "module",
	}
}

func defaultTSConfig() map[string]any {
	return map[string]any{
		"compilerOptions": map[string]any{
			"module":                     "NodeNext",
			"moduleResolution":           "NodeNext",
			"target":                     "ES2022",
			"lib":                        []any{"ES2022"},
			"skipLibCheck":               true,
			"allowSyntheticDefaultImports": true,
			"esModuleInterop":             true,
			"allowImportingTsExtensions":  true,
			"preserveSymlinks":            true,
		},
		"include": []any{"**/*"},
	}
}

// deepMerge merges override into base in place, the way the original
// implementation's deep_merge.py combines per-session overrides with the
// base package.json/tsconfig.json templates: nested objects are merged
// key by key, any other value type is replaced outright.
func deepMerge(base, override map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for k, v := range override {
		if overrideMap, ok := v.(map[string]any); ok {
			if baseMap, ok := base[k].(map[string]any); ok {
				base[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		base[k] = v
	}
	return base
}

func marshalJSON(v map[string]any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// dockerfileTemplate builds the per-session Dockerfile. It stages the
// user's project directory under its package.json name alongside a
// generated package.json/tsconfig.json and entrypoint.ts, and installs
// dependencies at build time so later container starts skip straight to
// running the inspector. The two trailing %s verbs are both the project's
// package name, so breakpoints set under /app/<package-name>/... resolve.
const dockerfileTemplate = `FROM %s
WORKDIR /app
RUN npm install --global tsx@latest
COPY package.json tsconfig.json ./
COPY %s/ ./%s/
COPY entrypoint.ts ./entrypoint.ts
RUN if [ -f package.json ]; then npm install --omit=dev --no-audit --no-fund || true; fi
`
