package main

import "errors"

//lint:ignore ST1005 this error is not used like normal errors
var errUsage = errors.New(`Usage:

	bwcheck [flags] [config]

Bwcheck signs in to the internet provider's customer portal, downloads the
account's usage for the current billing cycle, and prints how much of the
cycle has elapsed next to how much of the data allowance has been used.

The config file defaults to config.toml in the current directory. It is TOML
unless its name ends in .json or .hujson:

	username = "jdoe"
	password = "hunter2"

	[portal]
	login_url = "https://login.xfinity.com/login"
	usage_url = "https://customer.xfinity.com/apis/services/internet/usage"

If password is left out, it is read from the system keyring; see -login.

The flags are:

	-json      print the summary as JSON
	-login     prompt for the password and save it in the system keyring
	-timeout   give up on the portal after this long (default 2m; 0 for never)
	-v         verbose output
	-version   print the version and exit
	-h         show this message

Environment variables, also read from a .env file in the current directory:

	BWCHECK_CONFIG_FILE   config file used when none is named
	BWCHECK_LOGIN_URL     portal sign-in page, if not in the config file
	BWCHECK_USAGE_URL     portal usage document, if not in the config file
	BWCHECK_DEBUG         very verbose output, with HTTP traffic (passwords masked)
`)
