package studio

import "embed"

// EmbeddedAssets holds the browser assets served under /public/: app.js and
// app.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
