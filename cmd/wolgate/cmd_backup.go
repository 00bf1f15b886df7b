package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/HerbHall/wolgate/internal/backup"
	"github.com/HerbHall/wolgate/internal/config"
)

func runBackup(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("output", "", "output file path (default: wolgate-backup-{timestamp}.tar.gz)")
	configPath := fs.String("config", "", "configuration file; its database.path is backed up and the file is included")
	manifestPath := fs.String("manifest", "", "manifest file to include in the backup")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load configuration: %v\n", err)
		return 1
	}
	if *output == "" {
		*output = fmt.Sprintf("wolgate-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	opts := backup.Options{
		DBPath: cfg.GetString("database.path"),
		Files:  []string{*configPath, *manifestPath},
		Output: *output,
	}
	if err := backup.Backup(context.Background(), opts); err != nil {
		fmt.Fprintf(stderr, "backup failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "backup created: %s\n", *output)
	return 0
}

func runRestore(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "directory to restore into")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: wolgate restore [-dir DIR] ARCHIVE")
		return 2
	}

	files, err := backup.Restore(context.Background(), fs.Arg(0), *dir)
	if err != nil {
		fmt.Fprintf(stderr, "restore failed: %v\n", err)
		return 1
	}
	for _, f := range files {
		fmt.Fprintf(stdout, "restored %s\n", f)
	}
	return 0
}
