package oauthbridge

import (
	"html/template"
	"io"
)

// PageData はブリッジページの表示内容。
type PageData struct {
	Title    string
	Message  string
	Button   string
	LoginURL string
}

var pageTemplate = template.Must(template.New("bridge").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; background: #f0f2f5; }
.card { background: #fff; padding: 30px; border-radius: 15px; box-shadow: 0 4px 12px rgba(0,0,0,0.1); text-align: center; }
.button { display: inline-block; padding: 12px 24px; font-size: 16px; background: #007AFF; color: #fff; border-radius: 8px; text-decoration: none; font-weight: bold; }
</style>
</head>
<body>
<div class="card">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<a class="button" href="{{.LoginURL}}">{{.Button}}</a>
</div>
</body>
</html>
`))

// RenderPage はログインボタンを持つブリッジページを書き込む。
// LoginURLはテンプレートによりURLとしてエスケープされる。
func RenderPage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "交換日記アプリ"
	}
	if data.Button == "" {
		data.Button = "ログインしてアプリに戻る"
	}
	return pageTemplate.Execute(w, data)
}
