package config

const (
	defaultInputCSV               = "data/raw/subplots.csv"
	defaultWorkDir                = "data/processed"
	defaultAOIDir                 = "data/aoi"
	defaultImageryDir             = "data/imagery"
	defaultLogDir                 = "~/.local/share/agbprep/logs"
	defaultHistoryDBName          = "history.db"
	defaultIdentifierColumn       = "plot_id"
	defaultLonColumn              = "lon"
	defaultLatColumn              = "lat"
	defaultAGBColumn              = "agb"
	defaultIdentifierDelimiter    = "-"
	defaultSubplotAreaM2          = 500
	defaultPlotAreaM2             = 750
	defaultSegments               = 64
	minSegments                   = 32
	defaultCollection             = "COPERNICUS/S2_SR_HARMONIZED"
	defaultYear                   = 2022
	defaultSeasonStart            = "10-01"
	defaultSeasonEnd              = "03-31"
	defaultMaxCloudCover          = 10
	defaultScaleM                 = 10
	defaultQueryTimeoutSeconds    = 60
	defaultDownloadTimeoutSeconds = 300
	defaultCandidateLimit         = 25
	defaultMinFreeMiB             = 512
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

var (
	defaultDropColumns = []string{"carbon"}
	defaultNullTokens  = []string{"", "NA", "NaN", "nan", "null", "NULL", "None"}
	defaultBands       = []string{"B2", "B3", "B4", "B5", "B6", "B7", "B8", "B8A", "B11", "B12"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputCSV:   defaultInputCSV,
			WorkDir:    defaultWorkDir,
			AOIDir:     defaultAOIDir,
			ImageryDir: defaultImageryDir,
			LogDir:     defaultLogDir,
		},
		Inventory: Inventory{
			IdentifierColumn:    defaultIdentifierColumn,
			LonColumn:           defaultLonColumn,
			LatColumn:           defaultLatColumn,
			AGBColumn:           defaultAGBColumn,
			DropColumns:         append([]string(nil), defaultDropColumns...),
			IdentifierDelimiter: defaultIdentifierDelimiter,
			SubplotAreaM2:       defaultSubplotAreaM2,
			NullTokens:          append([]string(nil), defaultNullTokens...),
		},
		Geometry: Geometry{
			PlotAreaM2: defaultPlotAreaM2,
			Segments:   defaultSegments,
		},
		Imagery: Imagery{
			Collection:             defaultCollection,
			Bands:                  append([]string(nil), defaultBands...),
			Year:                   defaultYear,
			SeasonStart:            defaultSeasonStart,
			SeasonEnd:              defaultSeasonEnd,
			MaxCloudCover:          defaultMaxCloudCover,
			ScaleM:                 defaultScaleM,
			QueryTimeoutSeconds:    defaultQueryTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			CandidateLimit:         defaultCandidateLimit,
			MinFreeMiB:             defaultMinFreeMiB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
