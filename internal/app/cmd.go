package app

// Command はバイナリの起動モード（サブコマンド）。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はHTTPサーバーの/healthを叩いて終了コードで結果を返す。
	// シェルのないdistrolessイメージのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
	// CommandGrantAdmin は引数のメールアドレスのユーザーを承認済みの管理者にする。
	// 最初の管理者はAPIから作れないため、このコマンドで作成する。
	CommandGrantAdmin Command = "grant-admin"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
	string(CommandGrantAdmin):  CommandGrantAdmin,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数なし・未知のコマンドはserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
