package launcherd

import "fmt"

var _ Error = Code(0)

var codeMessages = map[Code]string{
	CodeOperationCancelled: "The operation was cancelled.",

	CodeLaunchNotFound: "Launch was unsuccessful because the game executable is missing",

	CodeInvalidExecutable: "The game executable must be inside of the game folder",

	CodeNoInstallPath: "No install path was chosen",

	CodeNetworkDisconnected: "There is no Internet connection",
}

func (code Code) RpcErrorMessage() string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("launcherd error %d", code)
}

func (code Code) RpcErrorCode() int64 {
	return int64(code)
}

func (code Code) RpcErrorData() map[string]interface{} {
	return nil
}

func (code Code) Error() string {
	return code.RpcErrorMessage()
}

func (code Code) String() string {
	return fmt.Sprintf("launcherd error: %s", code.Error())
}
