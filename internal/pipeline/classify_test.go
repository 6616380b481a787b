package pipeline

import (
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		isDir      bool
		inlineHTML bool
		want       Kind
	}{
		{name: "css", isDir: true, want: KindDir},
		{name: "main.scss", want: KindSCSS},
		{name: "_partial.scss", want: KindSCSS},
		{name: "main.css", want: KindCSS},
		{name: "vendor.min.css", want: KindCSS},
		{name: "MAIN.CSS", want: KindCopy},
		{name: "photo.jpg", want: KindImage},
		{name: "photo.JPEG", want: KindImage},
		{name: "logo.Png", want: KindImage},
		{name: "icon.svg", want: KindImage},
		{name: "anim.gif", want: KindCopy},
		{name: "photo.webp", want: KindCopy},
		{name: "jpg", want: KindCopy},
		{name: "index.html", want: KindCopy},
		{name: "index.html", inlineHTML: true, want: KindHTML},
		{name: "README", want: KindCopy},
		{name: "script.js", want: KindCopy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name, tt.isDir, tt.inlineHTML); got != tt.want {
				t.Errorf("Classify(%q, %v, %v) = %s, want %s", tt.name, tt.isDir, tt.inlineHTML, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	dst := filepath.Join("out", "css")
	tests := []struct {
		name string
		kind Kind
		want string
	}{
		{"main.scss", KindSCSS, filepath.Join(dst, "main.css")},
		{"a.scss.scss", KindSCSS, filepath.Join(dst, "a.scss.css")},
		{"main.css", KindCSS, filepath.Join(dst, "main.css")},
		{"logo.png", KindImage, filepath.Join(dst, "logo.png")},
		{"notes.scss.txt", KindCopy, filepath.Join(dst, "notes.scss.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(dst, tt.name, tt.kind); got != tt.want {
				t.Errorf("OutputPath(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindCopy: "copy", KindDir: "dir", KindSCSS: "scss",
		KindCSS: "css", KindImage: "image", KindHTML: "html",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
