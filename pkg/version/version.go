package version

// Version 构建时通过 -ldflags 注入
var Version = "dev"
