package email

var WithPostmarkAPI = withPostmarkAPI
