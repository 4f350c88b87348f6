package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/iotdash/internal/api"
	"github.com/lox/iotdash/internal/models"
	"github.com/lox/iotdash/internal/pivot"
	"github.com/lox/iotdash/internal/sensors"
	"github.com/lox/iotdash/internal/store"
	"github.com/lox/iotdash/internal/tsdb"
)

type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name='env-file',default='.env',help='Path to a .env file.'"`

	Driver       string        `enum:"influx,sqlite" default:"influx" env:"IOTDASH_DRIVER" help:"Data source: influx or sqlite."`
	InfluxURL    string        `name:"influx-url" env:"INFLUX_URL" help:"InfluxDB URL."`
	InfluxToken  string        `name:"influx-token" env:"INFLUX_TOKEN" help:"InfluxDB API token."`
	InfluxOrg    string        `name:"influx-org" env:"INFLUX_ORG" help:"InfluxDB organization."`
	InfluxBucket string        `name:"influx-bucket" env:"INFLUX_BUCKET" help:"InfluxDB bucket."`
	DB           string        `name:"db" default:"data/iotdash.db" env:"IOTDASH_DB" help:"SQLite database path (sqlite driver)."`
	Sensors      string        `name:"sensors" env:"IOTDASH_SENSORS" help:"Sensor catalogue YAML; built-in DHT22 and MPU6050 if empty."`
	Timezone     string        `default:"UTC" env:"IOTDASH_TZ" help:"Time zone for date ranges and display."`
	Timeout      time.Duration `default:"10s" env:"IOTDASH_QUERY_TIMEOUT" help:"Per-query deadline."`
}

type CLI struct {
	Globals

	Serve ServeCmd `cmd:"" default:"withargs" help:"Run the dashboard server."`
	Fetch FetchCmd `cmd:"" help:"Fetch one sensor and print its records and status."`
}

type ServeCmd struct {
	Port        string        `default:"8080" env:"PORT" help:"HTTP server port."`
	CORSOrigins []string      `name:"cors-origin" env:"IOTDASH_CORS_ORIGINS" help:"Origins allowed to call the JSON API."`
	WaitReady   time.Duration `default:"30s" help:"How long to wait for the data source at startup."`
}

type FetchCmd struct {
	Sensor string `arg:"" help:"Sensor ID, e.g. dht22 or mpu6050."`
	Start  string `help:"Start date (YYYY-MM-DD), default yesterday."`
	End    string `help:"End date (YYYY-MM-DD), default today."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("iotdash"),
		kong.Description("Sensor dashboard for DHT22 and MPU6050 readings."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

type dataSource interface {
	api.DataSource
	io.Closer
}

type influxSource struct{ *tsdb.Client }

func (s influxSource) Close() error {
	s.Client.Close()
	return nil
}

type sqliteSource struct {
	*store.Store
	db *sql.DB
}

func (s sqliteSource) Close() error { return s.db.Close() }

func (g *Globals) openSource(loc *time.Location) (dataSource, error) {
	switch g.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite", g.DB)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")

		st := store.New(db, loc)
		if err := st.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		version, err := st.MigrationVersion()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migration version: %w", err)
		}
		log.Printf("using sqlite data source %s (schema v%d)", g.DB, version)
		return sqliteSource{Store: st, db: db}, nil
	default:
		cfg := tsdb.Config{
			URL:      g.InfluxURL,
			Token:    g.InfluxToken,
			Org:      g.InfluxOrg,
			Bucket:   g.InfluxBucket,
			Timeout:  g.Timeout,
			Location: loc,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		log.Printf("using influxdb data source %s bucket %s", cfg.URL, cfg.Bucket)
		return influxSource{tsdb.NewClient(cfg)}, nil
	}
}

func (c *ServeCmd) Run(g *Globals) error {
	loc := g.location()
	catalog, err := sensors.LoadCatalog(g.Sensors)
	if err != nil {
		return err
	}

	src, err := g.openSource(loc)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if is, ok := src.(influxSource); ok && c.WaitReady > 0 {
		if err := is.WaitReady(ctx, c.WaitReady); err != nil {
			// The dashboard still starts; each refresh reports the outage.
			log.Printf("influxdb not reachable: %v", err)
		}
	}

	server := api.NewServer(src, catalog, c.Port, loc)
	if len(c.CORSOrigins) > 0 {
		server.AllowOrigins(c.CORSOrigins...)
	}

	log.Printf("starting server on :%s", c.Port)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Println("shutdown complete")
	return nil
}

func (c *FetchCmd) Run(g *Globals) error {
	loc := g.location()
	catalog, err := sensors.LoadCatalog(g.Sensors)
	if err != nil {
		return err
	}
	sensor, ok := catalog.Find(c.Sensor)
	if !ok {
		return fmt.Errorf("unknown sensor %q", c.Sensor)
	}

	def := models.DefaultDateRange(time.Now().In(loc))
	start, end := c.Start, c.End
	if start == "" {
		start = def.Start.Format(models.DateLayout)
	}
	if end == "" {
		end = def.End.Format(models.DateLayout)
	}
	rng, err := models.ParseDateRange(start, end, loc)
	if err != nil {
		return err
	}

	src, err := g.openSource(loc)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records, err := sensors.NewFetcher(src).Fetch(ctx, sensor, rng)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No %s data for %s.\n", sensor.Name, rng)
		return nil
	}
	return printRecords(os.Stdout, loc, sensors.Result{Sensor: sensor, Records: records})
}

func printRecords(out io.Writer, loc *time.Location, res sensors.Result) error {
	cols := pivot.Columns(res.Records)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "time\t"+strings.Join(cols, "\t"))
	for _, rec := range res.Records {
		row := []string{rec.Time.In(loc).Format(time.DateTime)}
		for _, col := range cols {
			if v, ok := rec.Value(col); ok {
				row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
			} else {
				row = append(row, "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	for _, card := range res.Cards() {
		fmt.Fprintf(out, "%s: %.2f %s [%s %s]\n", card.Label, card.Value, card.Unit, card.Status, card.Color)
	}
	return nil
}
