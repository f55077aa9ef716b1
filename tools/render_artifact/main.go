// Command render_artifact renders a markdown artifact to HTML and, with
// -pdf, to a PDF through headless Chrome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	infra "resume-copilot/pkg/infrastructure"
)

func main() {
	in := flag.String("in", "artifact.md", "markdown input")
	outDir := flag.String("out", ".", "output directory")
	title := flag.String("title", "", "document title (defaults to the input name)")
	pdf := flag.Bool("pdf", false, "also print a PDF")
	chrome := flag.String("chrome", os.Getenv("CHROME_PATH"), "chrome executable")
	flag.Parse()

	md, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(2)
	}
	base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	if *title == "" {
		*title = base
	}

	html, err := infra.NewMarkdownRenderer().ToHTML(*title, string(md))
	if err != nil {
		fmt.Fprintf(os.Stderr, "render html: %v\n", err)
		os.Exit(2)
	}
	htmlPath := filepath.Join(*outDir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write html: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", htmlPath)

	if !*pdf {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	b, err := infra.NewChromedpRenderer(*chrome).RenderHTMLToPDF(ctx, html)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render pdf: %v\n", err)
		os.Exit(1)
	}
	pdfPath := filepath.Join(*outDir, base+".pdf")
	if err := os.WriteFile(pdfPath, b, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write pdf: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", pdfPath)
}
