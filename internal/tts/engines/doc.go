// Package engines synthesizes speech for the render worker.
package engines
