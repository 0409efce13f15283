package formats

// defaultRules is evaluated in order; an extension listed twice belongs to the
// first rule that names it.
var defaultRules = []Rule{
	{
		Category:    CategoryImage,
		Extensions:  []string{"jpg", "jpeg", "png", "webp", "avif", "bmp", "tiff", "tif", "ico", "jxl"},
		Targets:     []string{"jpg", "png", "webp", "avif", "pdf"},
		ConvertHint: HintImage,
	},
	{
		Category:    CategoryHEIC,
		Extensions:  []string{"heic", "heif"},
		Targets:     []string{"jpg", "png", "webp", "pdf"},
		ConvertHint: HintHEIC,
	},
	{
		Category:    CategoryVector,
		Extensions:  []string{"svg"},
		Targets:     []string{"png"},
		ConvertHint: HintSVG,
	},
	{
		Category:    CategoryVideo,
		Extensions:  []string{"mp4", "mkv", "webm", "avi", "mov", "flv", "3gp", "3g2", "mpeg", "mpg", "ogv", "wmv"},
		Targets:     []string{"mp4", "webm", "gif", "mp3", "aac", "wav"},
		ConvertHint: HintVideo,
	},
	{
		Category:    CategoryAudio,
		Extensions:  []string{"wav", "mp3", "aac", "opus", "ogg", "flac", "m4a", "aiff", "aif", "wma", "mid", "midi", "weba"},
		Targets:     []string{"mp3", "wav", "ogg", "aac", "opus", "flac"},
		ConvertHint: HintAudio,
	},
	{
		Category:    CategoryPDF,
		Extensions:  []string{"pdf"},
		Targets:     []string{"docx", "png", "jpg", "webp"},
		ConvertHint: HintPDF,
	},
	{
		Category:    CategoryDocument,
		Extensions:  []string{"docx", "doc", "rtf"},
		Targets:     []string{"pdf"},
		ConvertHint: HintDocument,
	},
	{
		Category:    CategoryPresentation,
		Extensions:  []string{"pptx", "ppt"},
		Targets:     []string{"pdf"},
		ConvertHint: HintPresentation,
	},
	{
		Category:    CategorySpreadsheet,
		Extensions:  []string{"xlsx", "xls"},
		Targets:     []string{"pdf"},
		ConvertHint: HintSpreadsheet,
	},
	{
		Category:    CategoryCSV,
		Extensions:  []string{"csv"},
		Targets:     []string{"xlsx", "pdf"},
		ConvertHint: HintCSV,
	},
	{
		Category:    CategoryText,
		Extensions:  []string{"txt", "md", "markdown", "json", "xml"},
		Targets:     []string{"pdf"},
		ConvertHint: HintText,
	},
	{
		Category:    CategoryEbook,
		Extensions:  []string{"epub"},
		Targets:     []string{"pdf"},
		ConvertHint: HintEbook,
	},
	{
		Category:     CategoryArchive,
		Extensions:   []string{"zip", "7z", "rar", "gz", "tar", "bz2", "xz"},
		ConvertHint:  HintArchiveConvert,
		CompressHint: HintArchiveCompress,
	},
}

var unsupportedRule = Rule{
	Category:    CategoryUnsupported,
	ConvertHint: HintConvertUnsupported,
}

// compressExtensions are the inputs the backend compressor accepts.
var compressExtensions = []string{
	// images
	"jpg", "jpeg", "png", "webp", "avif", "bmp", "heic", "heif", "tiff", "tif", "ico", "jxl",
	// video
	"mp4", "mkv", "webm", "avi", "mov", "flv", "3gp", "3g2", "mpeg", "mpg", "ogv", "wmv",
	// audio
	"mp3", "wav", "aac", "ogg", "flac", "m4a", "aiff", "aif", "wma", "opus",
	// documents
	"pdf",
	// archives are copied through unchanged
	"zip", "7z", "rar", "gz", "tar", "bz2", "xz",
}
