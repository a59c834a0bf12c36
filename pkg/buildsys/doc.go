// Package buildsys drives the build of a rack host application and its plugins.
// It clones each plugin listed in the manifest, optionally switches branches and
// runs the same fixed command sequence against the host and every plugin directory.
// Commands are executed through the mvdan.cc/sh interpreter.
package buildsys
