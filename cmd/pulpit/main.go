// Command pulpit is the Cedar Pulpit CLI: scripture lookup, sermon
// library management, search, sync, and the REST API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/CedarPulpit/core/cache"
	"github.com/FocuswithJustin/CedarPulpit/core/lookup"
	"github.com/FocuswithJustin/CedarPulpit/core/provider"
	"github.com/FocuswithJustin/CedarPulpit/core/search"
	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
	coresync "github.com/FocuswithJustin/CedarPulpit/core/sync"
	"github.com/FocuswithJustin/CedarPulpit/internal/api"
	"github.com/FocuswithJustin/CedarPulpit/internal/config"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
	"github.com/FocuswithJustin/CedarPulpit/internal/remote"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage/sqlite"
)

const version = "0.3.0"

// libraryBlobKey is where the local sermon library persists.
const libraryBlobKey = "sermon-library"

// CLI defines the command-line interface for pulpit.
var CLI struct {
	// Global flags
	Config    string `help:"Path to config file" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error," default:""`
	LogFormat string `name:"log-format" help:"Log format (text, json)" enum:"text,json," default:""`

	Lookup  LookupCmd    `cmd:"" help:"Look up a scripture reference"`
	Sermon  SermonGroup  `cmd:"" help:"Manage the local sermon library"`
	Search  SearchCmd    `cmd:"" help:"Search the sermon library"`
	Sync    SyncCmd      `cmd:"" help:"Sync the sermon library with a server"`
	Cache   CacheGroup   `cmd:"" help:"Chapter cache operations"`
	Serve   ServeCmd     `cmd:"" help:"Start the REST API server"`
	Init    InitCmd      `cmd:"" help:"Write a sample configuration file"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// SermonGroup contains library operations.
type SermonGroup struct {
	Add    SermonAddCmd    `cmd:"" help:"Add a sermon to the library"`
	List   SermonListCmd   `cmd:"" help:"List sermons in the library"`
	Remove SermonRemoveCmd `cmd:"" help:"Remove a sermon from the library"`
}

// CacheGroup contains chapter cache operations.
type CacheGroup struct {
	Stats CacheStatsCmd `cmd:"" help:"Show local chapter cache statistics"`
	Clear CacheClearCmd `cmd:"" help:"Clear the local chapter cache"`
}

// app bundles the wired client-side components commands run against.
type app struct {
	cfg     *config.Config
	blobs   *storage.FileStore
	chapter *cache.ChapterCache
	lookup  *lookup.Service
}

func buildApp() (*app, error) {
	cfg, _, _, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	applyLogging(cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	blobs, err := storage.NewFileStore(cfg.Paths.DataDir, cfg.Paths.BlobsMax)
	if err != nil {
		return nil, err
	}

	primary := provider.NewPrimary(nil, cfg.Providers.PrimaryURL)
	secondary := provider.NewSecondary(nil, cfg.Providers.SecondaryURL)
	selector := provider.NewSelector(primary, secondary, cfg.Providers.DefaultTranslation)

	chapterCache := cache.New(blobs, cache.Config{
		MaxSize: cfg.Cache.MaxSize,
		MaxAge:  time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour,
	})

	return &app{
		cfg:     cfg,
		blobs:   blobs,
		chapter: chapterCache,
		lookup:  lookup.NewService(selector, chapterCache),
	}, nil
}

func applyLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	if CLI.LogLevel != "" {
		level = CLI.LogLevel
	}
	format := cfg.Logging.Format
	if CLI.LogFormat != "" {
		format = CLI.LogFormat
	}

	logLevel := logging.LevelInfo
	switch level {
	case "debug":
		logLevel = logging.LevelDebug
	case "warn":
		logLevel = logging.LevelWarn
	case "error":
		logLevel = logging.LevelError
	}
	logFormat := logging.FormatText
	if format == "json" {
		logFormat = logging.FormatJSON
	}
	logging.InitLogger(logLevel, logFormat)
}

// loadLibrary restores the sermon library from the blob store.
func (a *app) loadLibrary() (*sermon.Library, error) {
	data, ok, err := a.blobs.ReadBlob(libraryBlobKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return sermon.NewLibrary(), nil
	}
	var records []*sermon.Record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		logging.Warn("sermon library blob is corrupt, starting empty", "error", err)
		return sermon.NewLibrary(), nil
	}
	return sermon.LoadLibrary(records), nil
}

func (a *app) saveLibrary(lib *sermon.Library) error {
	data, err := json.Marshal(lib.All())
	if err != nil {
		return err
	}
	return a.blobs.WriteBlob(libraryBlobKey, string(data))
}

// LookupCmd looks up a scripture reference.
type LookupCmd struct {
	Reference   []string `arg:"" help:"Reference, e.g. 'John 3:16' or '1 Corinthians 13'"`
	Translation string   `short:"t" help:"Translation code (e.g. web, kjv, net)"`
}

func (c *LookupCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	res, err := a.lookup.Lookup(context.Background(), strings.Join(c.Reference, " "), c.Translation)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n\n", res.Chapter.Reference, res.Translation)
	fmt.Println(res.Chapter.Text)
	if res.Substituted {
		fmt.Fprintf(os.Stderr, "\nnote: translation %q unavailable, served %q instead\n",
			c.Translation, res.Translation)
	}
	if res.FromCache {
		fmt.Fprintln(os.Stderr, "(served from cache)")
	}
	return nil
}

// SermonAddCmd adds a sermon to the local library.
type SermonAddCmd struct {
	Title   string   `arg:"" help:"Sermon title"`
	Speaker string   `help:"Speaker name"`
	Series  string   `help:"Series name"`
	Verse   string   `help:"Verse reference, e.g. 'Hebrews 11:1'"`
	Notes   string   `help:"Sermon notes"`
	Tags    []string `help:"Tags" sep:","`
	Date    string   `help:"Scheduled date (YYYY-MM-DD)"`
}

func (c *SermonAddCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	lib, err := a.loadLibrary()
	if err != nil {
		return err
	}

	rec := lib.Add(&sermon.Record{
		Title:          c.Title,
		Speaker:        c.Speaker,
		Series:         c.Series,
		VerseReference: c.Verse,
		Notes:          c.Notes,
		Tags:           c.Tags,
		Date:           c.Date,
	})
	if err := a.saveLibrary(lib); err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", rec.Title, rec.ID)
	return nil
}

// SermonListCmd lists the local library.
type SermonListCmd struct{}

func (c *SermonListCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	lib, err := a.loadLibrary()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, lib.Len())
	for _, r := range lib.All() {
		synced := "yes"
		if r.NeedsSync {
			synced = "pending"
		}
		rows = append(rows, []string{r.ID[:8], r.Title, r.Speaker, r.VerseReference, synced})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Title", "Speaker", "Verse", "Synced"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

// SermonRemoveCmd removes a sermon by ID prefix.
type SermonRemoveCmd struct {
	ID string `arg:"" help:"Sermon ID (or unambiguous prefix)"`
}

func (c *SermonRemoveCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	lib, err := a.loadLibrary()
	if err != nil {
		return err
	}

	var matched *sermon.Record
	for _, r := range lib.All() {
		if strings.HasPrefix(r.ID, c.ID) {
			if matched != nil {
				return fmt.Errorf("ID prefix %q is ambiguous", c.ID)
			}
			matched = r
		}
	}
	if matched == nil {
		return fmt.Errorf("no sermon with ID %q", c.ID)
	}

	if err := lib.Remove(matched.ID); err != nil {
		return err
	}
	if err := a.saveLibrary(lib); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", matched.Title)
	return nil
}

// SearchCmd searches the sermon library.
type SearchCmd struct {
	Query        []string `arg:"" optional:"" help:"Search terms"`
	Tag          string   `help:"Restrict to sermons carrying this tag"`
	MinRelevance float64  `name:"min-relevance" help:"Exclude results scoring at or below this"`
}

func (c *SearchCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	lib, err := a.loadLibrary()
	if err != nil {
		return err
	}

	engine := search.NewEngine(a.blobs)
	results := engine.Search(lib.All(), strings.Join(c.Query, " "), search.Options{
		MinRelevance: c.MinRelevance,
		Tag:          c.Tag,
	})

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		fields := make([]string, 0, len(res.Matches))
		for _, m := range res.Matches {
			fields = append(fields, m.Field)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%.0f", res.Relevance),
			res.Item.Title,
			res.Item.VerseReference,
			strings.Join(fields, ", "),
		})
	}
	fmt.Println(renderTable(
		[]string{"Score", "Title", "Verse", "Matched"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

// SyncCmd runs a full sync pass against the configured server.
type SyncCmd struct {
	Server string `help:"Server base URL (overrides config)"`
	APIKey string `name:"api-key" help:"API key (overrides config)"`
	Policy string `help:"Conflict policy (local-first, cloud-first)" enum:"local-first,cloud-first," default:""`
}

func (c *SyncCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	serverURL := a.cfg.Sync.ServerURL
	if c.Server != "" {
		serverURL = c.Server
	}
	if serverURL == "" {
		return fmt.Errorf("no sync server configured (set sync.server_url or --server)")
	}
	apiKey := a.cfg.Sync.APIKey
	if c.APIKey != "" {
		apiKey = c.APIKey
	}
	policy := a.cfg.Sync.ConflictPolicy
	if c.Policy != "" {
		policy = c.Policy
	}

	lib, err := a.loadLibrary()
	if err != nil {
		return err
	}

	var opts []remote.Option
	if apiKey != "" {
		opts = append(opts, remote.WithAPIKey(apiKey))
	}
	client := remote.NewClient(serverURL, opts...)
	coordinator := coresync.NewCoordinator(client, coresync.ConflictPolicy(policy), a.cfg.Sync.PageSize)

	result, err := coordinator.FullSync(context.Background(), lib)
	if result != nil {
		if saveErr := a.saveLibrary(lib); saveErr != nil && err == nil {
			err = saveErr
		}
		fmt.Println(renderTable(
			[]string{"Uploaded", "Downloaded", "Conflicts", "Errors"},
			[][]string{{
				fmt.Sprint(result.Uploaded),
				fmt.Sprint(result.Downloaded),
				fmt.Sprint(result.Conflicts),
				fmt.Sprint(result.Errors),
			}},
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
		))
	}
	return err
}

// CacheStatsCmd shows local chapter cache statistics.
type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	stats := a.chapter.Stats()
	fmt.Println(renderTable(
		[]string{"Entries", "Max Size", "Max Age (days)", "Hits", "Misses", "Hit Rate"},
		[][]string{{
			fmt.Sprint(stats.Entries),
			fmt.Sprint(stats.MaxSize),
			fmt.Sprint(stats.MaxAgeDays),
			fmt.Sprint(stats.Hits),
			fmt.Sprint(stats.Misses),
			stats.HitRate,
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

// CacheClearCmd clears the local chapter cache.
type CacheClearCmd struct{}

func (c *CacheClearCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	n := a.chapter.Len()
	a.chapter.Clear()
	fmt.Printf("cleared %d cached chapters\n", n)
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port int `help:"Listen port (overrides config)"`
}

func (c *ServeCmd) Run() error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	db, err := sqlite.Open(a.cfg.Paths.CacheDB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sermons, err := storage.NewSermonStore(db)
	if err != nil {
		return err
	}
	serverCache, err := storage.NewServerCache(db)
	if err != nil {
		return err
	}

	primary := provider.NewPrimary(nil, a.cfg.Providers.PrimaryURL)
	secondary := provider.NewSecondary(nil, a.cfg.Providers.SecondaryURL)
	selector := provider.NewSelector(primary, secondary, a.cfg.Providers.DefaultTranslation)

	port := a.cfg.Server.Port
	if c.Port != 0 {
		port = c.Port
	}

	srv := api.NewServer(api.Config{
		Port: port,
		Auth: api.AuthConfig{
			Enabled:   a.cfg.Server.AuthEnabled,
			APIKey:    a.cfg.Server.APIKey,
			JWTSecret: a.cfg.Server.JWTSecret,
		},
		TLS: api.TLSConfig{
			Enabled:  a.cfg.Server.TLSEnabled,
			CertFile: a.cfg.Server.TLSCertFile,
			KeyFile:  a.cfg.Server.TLSKeyFile,
		},
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, sermons, serverCache, selector)

	return srv.Start()
}

// InitCmd writes a sample configuration file.
type InitCmd struct {
	Path string `help:"Destination path (default: the standard config location)" type:"path"`
}

func (c *InitCmd) Run() error {
	path := c.Path
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}
	if err := config.CreateSample(path); err != nil {
		return err
	}
	fmt.Printf("wrote sample config to %s\n", path)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("pulpit %s (sqlite driver: %s)\n", version, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pulpit"),
		kong.Description("Cedar Pulpit - sermon preparation toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
