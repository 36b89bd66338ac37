// Copyright 2025 FieldBase

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command fieldbase-admin applies a declarative TOML description of forms,
// roles, grants and users to a FieldBase deployment. Every item is one
// independent administration call; a failed item is logged and counted but
// does not stop the remaining items.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/fieldbase/fieldbase/admin"
)

type Flags struct {
	Config   string // required
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("fieldbase-admin", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config",
		filepath.Join(os.Getenv("HOME"), ".fieldbase", "admin.toml"),
		"path to the administration config")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &flags, nil
}

type Config struct {
	Endpoint string             `toml:"endpoint"`
	Token    string             `toml:"token"`
	Forms    []admin.FormSchema `toml:"forms"`
	Roles    []admin.Role       `toml:"roles"`
	Grants   []admin.Grant      `toml:"grants"`
	Users    []admin.User       `toml:"users"`
}

func parseConfig(filePath string) (*Config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	if c.Endpoint == "" || c.Token == "" {
		return nil, errors.Reason("config %s must set endpoint and token", filePath)
	}
	return &c, nil
}

// apply pushes the config to the deployment and returns the number of
// failed calls.
func apply(ctx context.Context, client *admin.Client, config *Config) int {
	failed := 0
	for _, form := range config.Forms {
		if err := client.CreateForm(ctx, form); err != nil {
			logging.Warningf(ctx, "form %s: %s", form.ID, err.Error())
			failed++
			continue
		}
		logging.Infof(ctx, "created form %s", form.ID)
	}
	for _, role := range config.Roles {
		if err := client.CreateRole(ctx, role); err != nil {
			logging.Warningf(ctx, "role %s: %s", role.ID, err.Error())
			failed++
			continue
		}
		logging.Infof(ctx, "created role %s", role.ID)
	}
	for _, grant := range config.Grants {
		if err := client.AddGrant(ctx, grant); err != nil {
			logging.Warningf(ctx, "grant of %s on %s: %s",
				grant.Role, grant.Resource, err.Error())
			failed++
			continue
		}
		logging.Infof(ctx, "granted %s on %s", grant.Role, grant.Resource)
	}
	for _, res := range client.AddUsers(ctx, config.Users) {
		if res.Err != nil {
			failed++
			continue
		}
		logging.Infof(ctx, "added user %s", res.User.Email)
	}
	return failed
}

func run(ctx context.Context, flags *Flags) error {
	config, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	client := admin.NewClient(config.Endpoint, config.Token)
	if failed := apply(ctx, client, config); failed > 0 {
		return errors.Reason("%d administration calls failed", failed)
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
