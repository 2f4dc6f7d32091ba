// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms mesh vertices for both material programs.
//
//go:embed mesh.vert
var MeshVertexShader string

// StandardFragmentShader shades lit, physically based materials.
//
//go:embed standard.frag
var StandardFragmentShader string

// BasicFragmentShader shades unlit overlay materials.
//
//go:embed basic.frag
var BasicFragmentShader string

// LineVertexShader is the vertex shader for helper lines.
//
//go:embed line.vert
var LineVertexShader string

// LineFragmentShader is the fragment shader for helper lines.
//
//go:embed line.frag
var LineFragmentShader string
