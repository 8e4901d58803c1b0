package appfs

import "embed"

// FS holds the files shipped inside the binaries.
//
//go:embed migrations/*.sql i18n/*.yaml templates/email/* assets/*
var FS embed.FS
