// Package assets embeds the web client served by the map server.
// index.html is produced from index.html.tpl, style.css and script.js by cmd/minify.
package assets

import _ "embed"

// Index is the minified single page application.
//
//go:embed index.html
var Index []byte

// Favicon is the site icon.
//
//go:embed favicon.svg
var Favicon []byte
