// Package check implements the stylesheet checking subcommand.
package check

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"csslint/archive"
	"csslint/config"
	"csslint/lint"
	"csslint/state"
)

// ErrFindings is returned by Run when checked stylesheets have problems but
// processing itself succeeded. The command line shell maps it to a dedicated
// exit code.
var ErrFindings = errors.New("style problems found")

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("check")

	if cmd.Args().Len() == 0 {
		return errors.New("no input source has been specified")
	}

	env.Format, err = config.ParseOutputFormat(cmd.String("format"))
	if err != nil {
		log.Warn("Unknown output format requested, switching to text", zap.Error(err))
		env.Format = config.OutputFormatText
	}

	// CSS predating UTF-8 conventions may need a forced code page
	cp := cmd.String("encoding")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully decoding all inputs without byte order mark", zap.String("charset", n))
		}
	}

	linter, err := lint.NewLinter(env.Cfg.Lint.Policy(), log)
	if err != nil {
		return fmt.Errorf("unable to prepare rule engine: %w", err)
	}

	log.Info("Checking starting", zap.Strings("sources", cmd.Args().Slice()), zap.Stringer("format", env.Format))
	defer func(start time.Time) {
		log.Info("Checking completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	res := &results{}
	for _, src := range cmd.Args().Slice() {
		abs, er := filepath.Abs(src)
		if er != nil {
			return er
		}
		if er := process(ctx, abs, linter, res, log); er != nil {
			return er
		}
	}

	if err := render(env, res); err != nil {
		return err
	}
	if res.count() > 0 {
		return fmt.Errorf("%w: %d in %d file(s)", ErrFindings, res.count(), len(res.files))
	}
	return nil
}

// results accumulates per-file findings in processing order.
type results struct {
	files []lint.FileFindings
	seen  int
}

func (r *results) add(path string, findings []lint.Finding) {
	if len(findings) == 0 {
		return
	}
	r.files = append(r.files, lint.FileFindings{Path: path, Findings: findings})
}

func (r *results) count() int {
	n := 0
	for _, f := range r.files {
		n += len(f.Findings)
	}
	return n
}

// render writes accumulated findings to stdout in the requested format and
// mirrors them into the debug report when one is active.
func render(env *state.LocalEnv, res *results) error {
	buf := new(bytes.Buffer)
	switch env.Format {
	case config.OutputFormatCheckstyle:
		if err := lint.RenderCheckstyle(buf, res.files); err != nil {
			return fmt.Errorf("unable to render findings: %w", err)
		}
	default:
		for _, ff := range res.files {
			if err := lint.RenderText(buf, ff.Path, ff.Findings); err != nil {
				return fmt.Errorf("unable to render findings: %w", err)
			}
		}
	}

	if env.Rpt != nil {
		name := "findings.txt"
		if env.Format == config.OutputFormatCheckstyle {
			name = "findings.xml"
		}
		env.Rpt.StoreData(name, buf.Bytes())
	}

	if _, err := io.Copy(os.Stdout, buf); err != nil {
		return fmt.Errorf("unable to write findings: %w", err)
	}
	return nil
}

// process determines the input type (directory, archive, or single file) and
// checks stylesheets accordingly. A path may point inside an archive:
// "styles.zip/web/site.css".
func process(ctx context.Context, src string, linter *lint.Linter, res *results, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, linter, res, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArc, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, linter, res, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		style, enc, err := isStyleFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if style && len(tail) == 0 {
			if err := processFile(ctx, head, head, enc, linter, res, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as stylesheet (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir collects stylesheet files under dir and checks them in natural
// name order so runs are reproducible regardless of directory enumeration.
func processDir(ctx context.Context, dir string, linter *lint.Linter, res *results, log *zap.Logger) error {
	type entry struct {
		path string
		enc  srcEncoding
	}
	var entries []entry

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		style, enc, err := isStyleFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !style {
			log.Debug("Skipping file, not recognized as stylesheet", zap.String("file", path))
			return nil
		}
		entries = append(entries, entry{path: path, enc: enc})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return natural.Less(entries[i].path, entries[j].path) })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processFile(ctx, e.path, e.path, e.enc, linter, res, log); err != nil {
			log.Error("Unable to process file", zap.String("file", e.path), zap.Error(err))
		}
	}
	return nil
}

// processArchive checks all stylesheet entries inside the archive under
// "pathIn", again in natural name order.
func processArchive(ctx context.Context, path, pathIn string, linter *lint.Linter, res *results, log *zap.Logger) error {
	type entry struct {
		file *zip.File
		enc  srcEncoding
	}
	var entries []entry

	err := archive.Walk(path, archive.MatchSuffix(".css"), func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(pathIn) > 0 && !strings.HasPrefix(f.FileHeader.Name, pathIn) {
			return nil
		}

		style, enc, err := isStyleInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !style {
			log.Debug("Skipping file, not recognized as stylesheet",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}
		entries = append(entries, entry{file: f, enc: enc})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].file.FileHeader.Name, entries[j].file.FileHeader.Name)
	})

	cp := state.EnvFromContext(ctx).CodePage
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := e.file.FileHeader.Name
		if cp != nil && e.file.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(name); err == nil {
				name = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", name), zap.Error(err))
			}
		}

		r, err := e.file.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", path), zap.String("file", name), zap.Error(err))
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", path), zap.String("file", name), zap.Error(err))
			continue
		}

		if err := checkData(ctx, data, filepath.Join(path, name), e.enc, linter, res, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", path), zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

// processFile checks a single stylesheet on disk. "display" is the path used
// in output, "path" the one opened.
func processFile(ctx context.Context, path, display string, enc srcEncoding, linter *lint.Linter, res *results, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return checkData(ctx, data, display, enc, linter, res, log)
}

func checkData(ctx context.Context, data []byte, display string, enc srcEncoding, linter *lint.Linter, res *results, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	log.Debug("Checking stylesheet", zap.String("file", display), zap.Int("size", len(data)))

	decoded, err := decodeStylesheet(data, enc, env.CodePage)
	if err != nil {
		return err
	}

	findings, _ := linter.Check(decoded, display)
	res.seen++
	res.add(display, findings)

	if env.Rpt != nil {
		// base names collide across directories, keep stored sources unique
		env.Rpt.StoreData(fmt.Sprintf("sources/%04d-%s", res.seen, filepath.Base(display)), decoded)
	}
	return nil
}
