package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/deicod/gostache/nodes"
	"github.com/deicod/gostache/runtime"
)

func main() {
	flag.Usage = func() {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: gostache [flags] [template names...]")
		_, _ = fmt.Fprintln(os.Stderr, "")
		_, _ = fmt.Fprintln(os.Stderr, "Renders Mustache templates loaded from -dir, or the inline -e source,")
		_, _ = fmt.Fprintln(os.Stderr, "against JSON data read from -data (use - for stdin).")
		_, _ = fmt.Fprintln(os.Stderr, "")
		flag.PrintDefaults()
	}
	dirFlag := flag.String("dir", ".", "directory templates and partials are loaded from")
	extFlag := flag.String("ext", runtime.DefaultExtension, "template file extension")
	dataFlag := flag.String("data", "", "JSON data file, - for stdin")
	exprFlag := flag.String("e", "", "inline template source; partials still load from -dir")
	lenientFlag := flag.Bool("lenient", false, "render missing variables as empty instead of failing")
	ignoreFlag := flag.Bool("ignore-missing", false, "render missing partials as empty")
	dumpFlag := flag.Bool("dump", false, "print the compiled node list instead of rendering")
	cacheFlag := flag.String("cache-dir", "", "directory for compiled templates shared between runs")
	verboseFlag := flag.Bool("v", false, "log template loads to stderr")
	flag.Parse()

	if *exprFlag != "" && flag.NArg() != 0 {
		fatal(errors.New("gostache: cannot use -e with template names"))
	}
	if *exprFlag == "" && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	env := runtime.NewEnvironment()
	env.SetLoader(runtime.NewFileSystemLoader(*dirFlag, *extFlag))
	env.SetStrict(!*lenientFlag)
	env.SetIgnoreMissingPartials(*ignoreFlag)
	if *verboseFlag {
		env.SetLogger(log.New(os.Stderr, "gostache: ", 0))
	}
	if *cacheFlag != "" {
		cache, err := runtime.NewDirCompiledCache(*cacheFlag)
		if err != nil {
			fatal(err)
		}
		env.SetCompiledCache(cache)
	}

	data, err := readData(*dataFlag)
	if err != nil {
		fatal(err)
	}

	var templates []*runtime.Template
	if *exprFlag != "" {
		tmpl, err := env.NewTemplateWithName(*exprFlag, "-e")
		if err != nil {
			fatal(describe(err, env, "-e", *exprFlag))
		}
		templates = append(templates, tmpl)
	}
	for _, name := range flag.Args() {
		tmpl, err := env.LoadTemplate(name)
		if err != nil {
			fatal(err)
		}
		templates = append(templates, tmpl)
	}

	out := bufio.NewWriter(os.Stdout)
	var allErr error
	for _, tmpl := range templates {
		if *dumpFlag {
			_, _ = fmt.Fprintf(out, "# %s\n%s", tmpl.Name(), nodes.Dump(tmpl.Nodes()))
			continue
		}
		if err := tmpl.Execute(out, data); err != nil {
			allErr = errors.Join(allErr, describe(err, env, tmpl.Name(), tmpl.Source()))
		}
	}
	if err := out.Flush(); err != nil {
		allErr = errors.Join(allErr, err)
	}
	if allErr != nil {
		fatal(allErr)
	}
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func readData(path string) (any, error) {
	if path == "" {
		return nil, nil
	}

	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}

	value, err := runtime.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("gostache: reading %s: %w", path, err)
	}
	return value, nil
}

// describe adds a caret snippet to errors that point into a template
// source. Errors raised in an included template are shown against it.
func describe(err error, env *runtime.Environment, name, source string) error {
	var rerr *runtime.Error
	if !errors.As(err, &rerr) || !rerr.HasSpan() {
		return err
	}
	if rerr.Template != name {
		loader := env.Loader()
		if loader == nil {
			return err
		}
		included, lerr := loader.Load(rerr.Template)
		if lerr != nil {
			return err
		}
		source = included
	}
	return errors.New(rerr.Snippet(source))
}
