// Package videogen wraps the asynchronous video synthesis and image edit
// task APIs.
package videogen
