package main

import (
	"context"
	"flag"
	"fmt"
	devenv "hwnotifier/dev/env"
	"hwnotifier/lib/captcha"
	"hwnotifier/lib/scrapers/cg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

func printScripts() {
	fmt.Println("Scripts:")
	names := make([]string, 0, len(scriptMap))
	for key := range scriptMap {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		fmt.Println("\t" + key)
	}
}

func main() {
	flag.Parse()

	script := flag.Arg(0)
	fn, ok := scriptMap[script]
	if !ok {
		fmt.Printf(
			"you must specify a valid script, '%s' is not a valid script.\n",
			script,
		)
		printScripts()
		os.Exit(1)
	}

	err := fn(flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var scriptMap = map[string]func(args []string) error{
	"captcha:sample": sampleCaptchas,
	"captcha:ocr":    recognizeSamples,
}

func samplesDir() (string, error) {
	dir, err := devenv.ResolvePath(filepath.Join("<dev_state>", "captchas"))
	if err != nil {
		return "", err
	}
	return dir, os.MkdirAll(dir, 0777)
}

// downloads captchas from the portal in portal_test.json5 so the
// preprocessing can be tuned offline
func sampleCaptchas(args []string) error {
	count := 20
	if len(args) > 0 {
		_, err := fmt.Sscan(args[0], &count)
		if err != nil {
			return fmt.Errorf("invalid sample count %q: %w", args[0], err)
		}
	}

	cfg, err := devenv.GetStateConfig[devenv.PortalTestConfig]("portal_test.json5")
	if err != nil {
		return err
	}
	dir, err := samplesDir()
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		client, err := cg.NewClient(cg.ClientOptions{BaseUrl: cfg.BaseUrl})
		if err != nil {
			cancel()
			return err
		}
		raw, err := client.Captcha(ctx)
		cancel()
		if err != nil {
			return err
		}

		path := filepath.Join(dir, fmt.Sprintf("%03d.img", i))
		err = os.WriteFile(path, raw, 0600)
		if err != nil {
			return err
		}
		fmt.Println("saved", path)
	}
	return nil
}

// runs the automated solver over every sample and prints what it read
func recognizeSamples(args []string) error {
	tesseract := ""
	if len(args) > 0 {
		tesseract = args[0]
	}
	dir, err := samplesDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	solver := captcha.NewSolver(captcha.NewTesseractRecognizer(tesseract), nil)
	accepted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".img") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		code, err := solver.Solve(context.Background(), raw, false)
		if err != nil {
			return err
		}
		if code != "" {
			accepted++
		}
		fmt.Printf("%s\t%q\n", e.Name(), code)
	}
	fmt.Printf("accepted %d/%d\n", accepted, len(entries))
	return nil
}
