package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paularlott/cli"

	_ "github.com/sshcollectorpro/switchreport/addone/collect/platforms/cisco_nxos"
	_ "github.com/sshcollectorpro/switchreport/addone/interact/platforms/cisco_nxos"
	"github.com/sshcollectorpro/switchreport/internal/app"
	"github.com/sshcollectorpro/switchreport/internal/config"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
	"github.com/sshcollectorpro/switchreport/pkg/render"
)

var version = "dev"

func main() {
	rootCmd := &cli.Command{
		Name:        "report",
		Version:     version,
		Usage:       "Switch inventory reports",
		Description: "Generate Nexus switch inventory reports and manage the device inventory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "config",
				Usage:        "Path to config.yaml",
				DefaultValue: "configs/config.yaml",
				EnvVars:      []string{"SWITCH_REPORT_CONFIG"},
				Global:       true,
			},
		},
		Commands: []*cli.Command{
			generateCommand(),
			{
				Name:        "devices",
				Usage:       "Device inventory commands",
				Description: "Import and list devices in the inventory",
				Commands:    []*cli.Command{importCommand(), listCommand()},
			},
			runsCommand(),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// open 加载配置并组装服务；日志输出到 stderr，避免与报告混在一起
func open(cmd *cli.Command) (*app.App, error) {
	cfg, err := config.Load(cmd.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := app.InitLogger(cfg); err != nil {
		return nil, err
	}
	if cfg.Log.Output != "file" {
		logger.SetOutput(os.Stderr)
	}
	return app.New(cfg)
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:        "generate",
		Usage:       "Generate a report for one device",
		Description: "Collect show command output from the device and print the report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "serial",
				Usage:    "Device serial number",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Report template (default from config)",
			},
			&cli.StringFlag{
				Name:         "format",
				Usage:        "Output format: text or json",
				DefaultValue: render.FormatText,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			format := cmd.GetString("format")
			if format != render.FormatText && format != render.FormatJSON {
				return fmt.Errorf("unknown format %q", format)
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Reports.Run(ctx, cmd.GetString("template"), cmd.GetString("serial"), model.TriggerCLI)
			if err != nil {
				return err
			}
			if format == render.FormatJSON {
				data, err := render.JSON(result.Response)
				if err != nil {
					return err
				}
				_, err = fmt.Println(string(data))
				return err
			}
			if err := render.Text(os.Stdout, result.Response); err != nil {
				return err
			}
			if result.Run.JSONURI != "" {
				fmt.Printf("\nArchived: %s\n", result.Run.JSONURI)
			}
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Import devices from a YAML file",
		Description: "Insert or update devices listed under devices: in the file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Device YAML file",
				Required: true,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Inventory.LoadDeviceSeed(ctx, cmd.GetString("file"))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d device(s)\n", n)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List devices",
		Description: "Print the device inventory",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			devices, err := a.Inventory.List(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				last := "-"
				if d.LastReportAt != nil {
					last = d.LastReportAt.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{d.SerialNumber, d.Hostname, fmt.Sprintf("%s:%d", d.IP, d.Port), d.Protocol, d.Platform, last})
			}
			fmt.Println(render.Table([]string{"SERIAL", "HOSTNAME", "ADDRESS", "PROTOCOL", "PLATFORM", "LAST REPORT"}, rows))
			return nil
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:        "runs",
		Usage:       "List report runs",
		Description: "Print recent report runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "serial",
				Usage: "Only runs for this serial number",
			},
			&cli.IntFlag{
				Name:         "limit",
				Usage:        "Maximum number of runs",
				DefaultValue: 20,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.Reports.ListRuns(ctx, cmd.GetString("serial"), cmd.GetInt("limit"))
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{r.ID, r.SerialNumber, r.Template, r.Trigger, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("%dms", r.Duration)})
			}
			fmt.Println(render.Table([]string{"ID", "SERIAL", "TEMPLATE", "TRIGGER", "STATUS", "STARTED", "DURATION"}, rows))
			return nil
		},
	}
}
