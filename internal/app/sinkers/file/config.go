package file

// Configuration settings for file sinking
type Configuration struct {
	Dir    string `toml:"dir" default:"log" comment:"output folder, created when missing"`
	Name   string `toml:"name" default:"snapshots.log" comment:"output file name"`
	Format string `toml:"format" default:"json" comment:"json (one snapshot per line) or csv (one flight per row)"`
}
