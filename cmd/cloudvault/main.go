// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/cloudvault/pkg/cmd"
)

//go:generate swag init -g cmd/cloudvault/main.go -d ../../ -o ../../docs

//	@title			CloudVault API
//	@version		1.0
//	@description	CloudVault 文件存储与共享服务：文件夹树、直传上传、存储配额、直接共享与分享链接。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						accessToken

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
