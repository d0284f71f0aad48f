// Command cbuf is the cbuf schema compiler and code generator.
//
// Usage:
//
//	cbuf generate [options] <schema-file>
//	cbuf <schema-file.cbuf> [options]   (same as generate)
//	cbuf validate [-I dir]... <schema-file>...
//	cbuf fmt [-w] <schema-file>...
//
// Run 'cbuf <command> -h' for command-specific help.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/blockberries/cbuf/pkg/codegen"
	"github.com/blockberries/cbuf/pkg/schema"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "generate", "gen":
		return cmdGenerate(args[1:])
	case "validate", "val":
		return cmdValidate(args[1:])
	case "fmt", "format":
		return cmdFormat(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		if strings.HasSuffix(args[0], ".cbuf") {
			return cmdGenerate(args)
		}
		fmt.Fprintf(os.Stderr, "cbuf: unknown command %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `cbuf schema compiler

Usage:
  cbuf generate [options] <schema-file>
  cbuf <schema-file.cbuf> [options]   (same as generate)
  cbuf validate [-I dir]... <schema-file>...
  cbuf fmt [-w] <schema-file>...

Run 'cbuf <command> -h' for command-specific help.`)
}

func cmdGenerate(args []string) int {
	flags := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	searchPaths := flags.StringArrayP("include", "I", nil, "add a schema import search path (repeatable)")
	out := flags.StringP("out", "o", "", "output file (default: stdout)")
	pkgName := flags.String("package", "", "override the generated package name")
	prefix := flags.String("prefix", "", "add a prefix to generated type names")
	suffix := flags.String("suffix", "", "add a suffix to generated type names")
	jsonMethods := flags.Bool("json", true, "generate a MarshalJSON method")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cbuf generate [-I dir]... [--out file] [--package name] <schema-file>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}

	if flags.NArg() != 1 {
		flags.Usage()
		return 1
	}
	schemaPath := flags.Arg(0)

	s, errs := schema.LoadAndValidate(schemaPath, *searchPaths...)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s\n", e)
		}
		return 1
	}

	namespaces := append([]*schema.Namespace{s.Global}, s.Namespaces...)
	if verrs := schema.NewValidator().Validate(namespaces); len(verrs) > 0 {
		for _, e := range verrs {
			fmt.Fprintf(os.Stderr, "%s\n", e)
		}
		return 1
	}

	opts := codegen.DefaultOptions()
	opts.GenerateJSON = *jsonMethods
	opts.TypePrefix = *prefix
	opts.TypeSuffix = *suffix
	if *pkgName != "" {
		opts.Package = *pkgName
	} else {
		opts.Package = defaultPackageName(schemaPath)
	}

	gen, ok := codegen.Get(codegen.LanguageGo)
	if !ok {
		fmt.Fprintln(os.Stderr, "cbuf: no generator registered for go")
		return 1
	}

	if *out == "" {
		if err := gen.Generate(os.Stdout, s, opts); err != nil {
			fmt.Fprintf(os.Stderr, "cbuf: %s\n", err)
			return 1
		}
		return 0
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cbuf: %s\n", err)
		return 1
	}
	defer f.Close()
	if err := gen.Generate(f, s, opts); err != nil {
		fmt.Fprintf(os.Stderr, "cbuf: %s\n", err)
		return 1
	}
	return 0
}

// defaultPackageName derives a package name from the schema file's base
// name when -package is not given, matching the convention generated code
// lives alongside its .cbuf source under the same package.
func defaultPackageName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "-", "_")
	if base == "" {
		return "cbufgen"
	}
	return base
}

func cmdValidate(args []string) int {
	flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	searchPaths := flags.StringArrayP("include", "I", nil, "add a schema import search path (repeatable)")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cbuf validate [-I dir]... <schema-file>...")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	hasErrors := false
	for _, path := range flags.Args() {
		s, errs := schema.LoadAndValidate(path, *searchPaths...)
		if len(errs) > 0 {
			hasErrors = true
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			continue
		}

		namespaces := append([]*schema.Namespace{s.Global}, s.Namespaces...)
		verrs := schema.NewValidator().Validate(namespaces)
		sawError := false
		for _, e := range verrs {
			fmt.Fprintln(os.Stderr, e)
			if e.Severity == schema.SeverityError {
				sawError = true
			}
		}
		if sawError {
			hasErrors = true
			continue
		}
		fmt.Printf("valid: %s\n", path)
	}

	if hasErrors {
		return 1
	}
	return 0
}

func cmdFormat(args []string) int {
	flags := pflag.NewFlagSet("fmt", pflag.ContinueOnError)
	write := flags.BoolP("write", "w", false, "write the formatted result back to the source file")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: cbuf fmt [-w] <schema-file>...")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	hasErrors := false
	for _, path := range flags.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cbuf: %s\n", err)
			hasErrors = true
			continue
		}

		s, perrs := schema.ParseFile(path, string(content))
		if len(perrs) > 0 {
			for _, e := range perrs {
				fmt.Fprintln(os.Stderr, e)
			}
			hasErrors = true
			continue
		}

		formatted := schema.FormatSchema(s)
		if *write {
			if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "cbuf: %s\n", err)
				hasErrors = true
				continue
			}
			fmt.Printf("formatted: %s\n", path)
			continue
		}
		fmt.Print(formatted)
	}

	if hasErrors {
		return 1
	}
	return 0
}
