// Package inject carries the page-context capture script and the decoding of
// what it reports back. The script runs before any page code, hooks the
// fetch/XHR surfaces and the EME entry point, and reports candidate URLs
// through a CDP binding.
package inject

// BindingName is the CDP binding the page script reports through.
const BindingName = "__streamlensReport"

// CaptureFlagName is the page global the advanced-capture toggle is pushed
// to; the script stops reporting while it is false.
const CaptureFlagName = "__streamlensAdvanced"

// PageScript is evaluated on every new document before page scripts run.
// It must stay self-contained: no external references, idempotent under
// repeated injection, silent on failure.
const PageScript = `(() => {
  if (window.__streamlensHooked) return;
  window.__streamlensHooked = true;

  const report = (payload) => {
    try {
      if (window.` + CaptureFlagName + ` === false) return;
      if (typeof window.` + BindingName + ` === 'function') {
        window.` + BindingName + `(JSON.stringify(payload));
      }
    } catch (e) {}
  };

  const mediaRe = /\.(m3u8|mpd|mp4|webm|mkv|ts|m4s)([?#]|$)/i;
  const seen = new Set();
  const reportURL = (url, kind) => {
    if (!url || seen.has(url)) return;
    if (!mediaRe.test(url) && !url.startsWith('blob:') && !url.startsWith('data:video')) return;
    seen.add(url);
    report({ kind: kind, url: String(url), page: location.href });
  };

  const origFetch = window.fetch;
  window.fetch = function (input, init) {
    try {
      reportURL(typeof input === 'string' ? input : input && input.url, 'fetch');
    } catch (e) {}
    return origFetch.apply(this, arguments);
  };

  const origOpen = XMLHttpRequest.prototype.open;
  XMLHttpRequest.prototype.open = function (method, url) {
    try { reportURL(url, 'xhr'); } catch (e) {}
    return origOpen.apply(this, arguments);
  };

  const watchVideo = (el) => {
    const check = () => {
      if (el.currentSrc) reportURL(el.currentSrc, 'video');
      if (el.src) reportURL(el.src, 'video');
    };
    check();
    el.addEventListener('loadstart', check);
  };
  const scan = (root) => {
    if (root.querySelectorAll) {
      root.querySelectorAll('video, audio, source').forEach(watchVideo);
    }
  };
  new MutationObserver((muts) => {
    for (const m of muts) {
      for (const node of m.addedNodes) {
        if (node.nodeType === 1) {
          if (node.tagName === 'VIDEO' || node.tagName === 'AUDIO' || node.tagName === 'SOURCE') {
            watchVideo(node);
          }
          scan(node);
        }
      }
    }
  }).observe(document.documentElement || document, { childList: true, subtree: true });
  if (document.readyState !== 'loading') {
    scan(document);
  } else {
    document.addEventListener('DOMContentLoaded', () => scan(document));
  }

  const origRMKSA = navigator.requestMediaKeySystemAccess;
  if (origRMKSA) {
    navigator.requestMediaKeySystemAccess = function (keySystem, configs) {
      try {
        report({ kind: 'eme', keySystem: String(keySystem), page: location.href });
      } catch (e) {}
      return origRMKSA.apply(this, arguments);
    };
  }
})();`
