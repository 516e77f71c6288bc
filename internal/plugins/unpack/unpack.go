// Package unpack implements the unpack plugin. It fetches layer archives
// from local paths or http(s) URLs and extracts them, one background task
// per archive on the kas async runtime.
package unpack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kas/internal/archive"
	"kas/internal/async"
	"kas/internal/kaserr"
	"kas/internal/plugin"
	"kas/internal/state"
)

// Plugin is the unpack subcommand.
type Plugin struct {
	// Client is used for remote sources; nil means http.DefaultClient.
	Client *http.Client
}

// New creates the unpack plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string { return "unpack" }

func (*Plugin) Help() string { return "Fetch and extract layer archives." }

func (*Plugin) SetupParser(cmd *cobra.Command) {
	cmd.Use = "unpack SOURCE..."
	cmd.Long = "Fetch and extract layer archives.\n\n" +
		"SOURCE is a local path or an http(s) URL of a .tar, .tar.gz, .tgz, " +
		".tar.bz2, .tar.xz, .zip or .7z archive. Archives are processed in " +
		"parallel; unchanged archives that were extracted before are skipped."
	cmd.Args = cobra.MinimumNArgs(1)
	cmd.Flags().String("dest", "", "Destination directory (default: KAS_WORK_DIR)")
	cmd.Flags().Bool("force", false, "Extract even if the archive is unchanged")
}

// job is the work of one source.
type job struct {
	inv      *plugin.Invocation
	client   *http.Client
	st       *state.State
	dest     string
	download string
	force    bool
}

// Run schedules one task per source and waits for them in order.
// The first failure is returned as is; tasks still running are left to the
// runtime's shutdown drain.
func (p *Plugin) Run(ctx context.Context, inv *plugin.Invocation, args *plugin.Args) error {
	dest, err := args.Flags.GetString("dest")
	if err != nil {
		return err
	}
	force, err := args.Flags.GetBool("force")
	if err != nil {
		return err
	}
	if dest == "" {
		dest = inv.Env.WorkDir
	}
	if dest, err = filepath.Abs(dest); err != nil {
		return &kaserr.UserError{Msg: "invalid destination", Err: err}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &kaserr.UserError{Msg: "creating destination", Err: err}
	}

	st, err := state.Load(dest)
	if err != nil {
		return &kaserr.UserError{Msg: "loading unpack state", Err: err}
	}

	j := &job{
		inv:      inv,
		client:   p.Client,
		st:       st,
		dest:     dest,
		download: filepath.Join(inv.Env.WorkDir, "downloads"),
		force:    force,
	}

	sources := dedupe(args.Positional)
	tasks := make([]*async.Task, 0, len(sources))
	for _, source := range sources {
		t, err := inv.Tasks.Go("unpack "+source, func(ctx context.Context) error {
			return j.unpack(ctx, source)
		})
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
	}

	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			return err
		}
	}
	inv.Log.Infof("unpacked %d archive(s) into %s", len(tasks), dest)
	return nil
}

// unpack fetches and extracts a single source.
func (j *job) unpack(ctx context.Context, source string) error {
	local := source
	if archive.IsRemote(source) {
		name := archive.RemoteName(source)
		if !archive.Supported(name) {
			return kaserr.NewUserError("%s: %v", source, archive.ErrUnsupported)
		}
		local = filepath.Join(j.download, downloadName(source, name))
		j.inv.Log.Infof("downloading %s", source)
		if err := archive.Download(ctx, j.client, source, local); err != nil {
			return &kaserr.UserError{Msg: "fetching " + source, Err: err}
		}
	} else if !archive.Supported(source) {
		return kaserr.NewUserError("%s: %v", source, archive.ErrUnsupported)
	}

	sum, err := archive.Checksum(local)
	if err != nil {
		return &kaserr.UserError{Msg: "reading " + source, Err: err}
	}
	if prev, ok := j.st.Get(source); ok && prev.SHA256 == sum && !j.force {
		if _, err := os.Stat(prev.Root); err == nil {
			j.inv.Log.Infof("%s is unchanged, skipping", source)
			return nil
		}
	}

	root, err := archive.Extract(ctx, local, j.dest)
	if err != nil {
		return &kaserr.UserError{Msg: "unpacking " + source, Err: err}
	}

	j.st.Put(state.ArchiveState{Source: source, SHA256: sum, Root: root, Extracted: time.Now().UTC()})
	if err := j.st.Save(j.dest); err != nil {
		return fmt.Errorf("recording %s: %w", source, err)
	}
	j.inv.Log.Infof("unpacked %s to %s", source, root)
	return nil
}

// dedupe drops repeated sources, keeping the first occurrence.
func dedupe(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// downloadName is the local file name of a remote source. It is prefixed
// with a hash of the URL so that archives sharing a file name on different
// hosts do not overwrite each other.
func downloadName(source, name string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:6]) + "-" + name
}
