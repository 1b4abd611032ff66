package httpd

import "path/filepath"

// contentTypeFor maps portal asset extensions to MIME types.
func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "text/plain; charset=utf-8"
	}
}

// defaultPortalPage is served when no portal_root is configured. It is a
// self-contained page driving /scan and /connect; a product build replaces
// it with real assets under portal_root.
const defaultPortalPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Network Setup</title>
<style>
body { font-family: sans-serif; max-width: 28em; margin: 2em auto; padding: 0 1em; }
li { cursor: pointer; margin: 0.3em 0; }
#status { margin-top: 1em; font-weight: bold; }
</style>
</head>
<body>
<h1>Network Setup</h1>
<p>Select the network this device should join.</p>
<button onclick="scan()">Scan for networks</button>
<ul id="networks"></ul>
<form onsubmit="return connect(this)">
  <input name="ssid" id="ssid" placeholder="Network name" required>
  <input name="password" type="password" placeholder="Passphrase (leave empty if open)">
  <button type="submit">Join</button>
</form>
<div id="status"></div>
<script>
function scan() {
  document.getElementById('status').textContent = 'Scanning...';
  fetch('/scan').then(r => r.json()).then(data => {
    var list = document.getElementById('networks');
    list.innerHTML = '';
    if (data.error) {
      document.getElementById('status').textContent = data.error;
      return;
    }
    (data.networks || []).forEach(function (n) {
      var li = document.createElement('li');
      li.textContent = n.ssid + ' (' + n.rssi + ' dBm)' + (n.secure ? ' \u{1F512}' : '');
      li.onclick = function () { document.getElementById('ssid').value = n.ssid; };
      list.appendChild(li);
    });
    document.getElementById('status').textContent = '';
  });
}
function connect(form) {
  document.getElementById('status').textContent = 'Connecting...';
  fetch('/connect', {
    method: 'POST',
    headers: {'Content-Type': 'application/x-www-form-urlencoded'},
    body: 'ssid=' + encodeURIComponent(form.ssid.value) +
          '&password=' + encodeURIComponent(form.password.value)
  }).then(r => r.text()).then(function (text) {
    document.getElementById('status').textContent = text;
  });
  return false;
}
</script>
</body>
</html>
`
