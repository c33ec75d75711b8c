package main

import (
	"emperror.dev/errors"
	"github.com/spf13/viper"
	"strconv"
)

const defaultEndpoint = "https://api.zotero.org"

type Config struct {
	Endpoint    string
	LibraryId   int64
	LibraryType string
	ApiKey      string
}

// LoadConfig reads the credentials file (env-style key/value pairs) and
// validates it. Values present in the process environment take precedence
// over the file.
func LoadConfig(cfgfile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(cfgfile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "cannot read credentials file %s", cfgfile)
	}

	conf := &Config{
		Endpoint:    v.GetString("ZOTERO_API_ENDPOINT"),
		LibraryType: v.GetString("ZOTERO_LIBRARY_TYPE"),
		ApiKey:      v.GetString("ZOTERO_API_KEY"),
	}
	if conf.Endpoint == "" {
		conf.Endpoint = defaultEndpoint
	}
	if conf.LibraryType == "" {
		conf.LibraryType = "user"
	}
	if conf.LibraryType != "user" {
		return nil, errors.Errorf("library type %s not supported (only user libraries)", conf.LibraryType)
	}
	if conf.ApiKey == "" {
		return nil, errors.Errorf("ZOTERO_API_KEY missing in %s", cfgfile)
	}

	idStr := v.GetString("ZOTERO_LIBRARY_ID")
	if idStr == "" {
		return nil, errors.Errorf("ZOTERO_LIBRARY_ID missing in %s", cfgfile)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.Errorf("invalid ZOTERO_LIBRARY_ID %s", idStr)
	}
	conf.LibraryId = id

	return conf, nil
}
