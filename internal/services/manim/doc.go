// Package manim wraps the Manim command-line renderer.
//
// Client runs `<binary> <quality flag> <script> <scene>`, records the exit
// status and both output streams of the most recent attempt, and on success
// locates the rendered <scene>.mp4 under the media directory. When several
// candidates exist the newest modification time wins, so stale renders from
// earlier runs are never returned.
package manim
