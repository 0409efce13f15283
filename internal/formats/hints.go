package formats

import (
	"golang.org/x/text/language"
)

type HintKey string

const (
	HintImage               HintKey = "image"
	HintHEIC                HintKey = "heic"
	HintSVG                 HintKey = "svg"
	HintVideo               HintKey = "video"
	HintAudio               HintKey = "audio"
	HintPDF                 HintKey = "pdf"
	HintDocument            HintKey = "document"
	HintPresentation        HintKey = "presentation"
	HintSpreadsheet         HintKey = "spreadsheet"
	HintCSV                 HintKey = "csv"
	HintText                HintKey = "text"
	HintEbook               HintKey = "ebook"
	HintArchiveConvert      HintKey = "archive_convert"
	HintArchiveCompress     HintKey = "archive_compress"
	HintConvertUnsupported  HintKey = "convert_unsupported"
	HintCompressAvailable   HintKey = "compress_available"
	HintCompressUnsupported HintKey = "compress_unsupported"
)

var hintTones = map[HintKey]Tone{
	HintArchiveConvert:      ToneMuted,
	HintArchiveCompress:     ToneMuted,
	HintCompressAvailable:   ToneMuted,
	HintConvertUnsupported:  ToneDanger,
	HintCompressUnsupported: ToneDanger,
}

type catalog map[HintKey]string

var catalogs = map[language.Tag]catalog{
	language.English: {
		HintImage:               "Convert image or create PDF from image.",
		HintHEIC:                "iPhone photos will be converted to universal format.",
		HintSVG:                 "Vector SVG will be rasterized to PNG.",
		HintVideo:               "Convert video, create GIF, or extract audio.",
		HintAudio:               "Convert audio to any format.",
		HintPDF:                 "Convert PDF to Word or image.",
		HintDocument:            "Convert document to PDF.",
		HintPresentation:        "Convert PowerPoint to PDF.",
		HintSpreadsheet:         "Convert Excel to PDF.",
		HintCSV:                 "Convert CSV to Excel or PDF.",
		HintText:                "Convert text to PDF.",
		HintEbook:               "Convert EPUB to PDF.",
		HintArchiveConvert:      "Archives are already compressed",
		HintArchiveCompress:     "Archives are already compressed (will copy original)",
		HintConvertUnsupported:  "Format not supported for conversion",
		HintCompressAvailable:   "Compression available for this format",
		HintCompressUnsupported: "Format not supported for compression",
	},
	language.Indonesian: {
		HintImage:               "Konversi gambar atau buat PDF dari gambar.",
		HintHEIC:                "Foto iPhone akan dikonversi ke format universal.",
		HintSVG:                 "SVG vektor akan diubah menjadi PNG.",
		HintVideo:               "Konversi video, buat GIF, atau ambil audionya.",
		HintAudio:               "Konversi audio ke format apa pun.",
		HintPDF:                 "Konversi PDF ke Word atau gambar.",
		HintDocument:            "Konversi dokumen ke PDF.",
		HintPresentation:        "Konversi PowerPoint ke PDF.",
		HintSpreadsheet:         "Konversi Excel ke PDF.",
		HintCSV:                 "Konversi CSV ke Excel atau PDF.",
		HintText:                "Konversi teks ke PDF.",
		HintEbook:               "Konversi EPUB ke PDF.",
		HintArchiveConvert:      "Arsip sudah terkompresi",
		HintArchiveCompress:     "Arsip sudah terkompresi (file asli akan disalin)",
		HintConvertUnsupported:  "Format tidak didukung untuk konversi",
		HintCompressAvailable:   "Kompresi tersedia untuk format ini",
		HintCompressUnsupported: "Format tidak didukung untuk kompresi",
	},
}

// supportedLanguages[0] is the fallback for the matcher.
var supportedLanguages = []language.Tag{language.English, language.Indonesian}

var languageMatcher = language.NewMatcher(supportedLanguages)

// MatchLanguage picks the closest hint catalog for tag.
func MatchLanguage(tag language.Tag) language.Tag {
	_, idx, _ := languageMatcher.Match(tag)
	return supportedLanguages[idx]
}

func (c catalog) hint(key HintKey) Hint {
	text, ok := c[key]
	if !ok {
		text = catalogs[language.English][key]
	}
	tone, ok := hintTones[key]
	if !ok {
		tone = ToneMuted
	}
	return Hint{Key: key, Text: text, Tone: tone}
}
