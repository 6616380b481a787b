// Command assetforge builds the static assets of a website: it compiles
// SCSS, minifies CSS, compresses images and mirrors everything else into an
// output directory. It can also watch the sources, serve a live preview,
// and publish the result to S3-compatible storage.
package main

func main() {
	Execute()
}
