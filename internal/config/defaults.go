package config

import (
	"gopkg.in/yaml.v3"
)

// Default returns the descriptor of a standard theme: a front end and an
// editor bundle, transpiled scripts, hashed assets and Sass stylesheets with
// extracted CSS.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Entry: map[string]string{
			"main":   "src/index.js",
			"editor": "src/editor.js",
		},
		Output: Output{
			Path:     "dist",
			Filename: "[name].bundle.js",
		},
		Devtool: "source-map",
		Target:  "es2015",
		Rules: []Rule{
			{
				Name:    "scripts",
				Test:    `\.js$`,
				Exclude: `node_modules`,
				Use:     []StageRef{{Stage: "transpile"}},
			},
			{
				Name: "assets",
				Test: `(?i)\.(gif|png|jpe?g|svg|woff|woff2)$`,
				Use: []StageRef{
					{Stage: "asset", Options: options(map[string]any{"name": "assets/[name]_[hash].[ext]"})},
				},
			},
			{
				Name: "styles",
				Test: `\.s?css$`,
				Use: []StageRef{
					{Stage: "sass", Options: options(map[string]any{"sourceMap": true, "importer": "glob"})},
					{Stage: "resolve-url"},
					{Stage: "postcss"},
					{Stage: "css"},
				},
			},
		},
		Plugins: Plugins{
			Clean:      true,
			ExtractCSS: &ExtractCSS{Filename: "[name].css"},
		},
	}
}

func options(v any) yaml.Node {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		panic(err)
	}
	return n
}
